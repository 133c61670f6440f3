// Package imaging identifies uploaded image formats by content.
package imaging

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"multitool/internal/core"
)

// Kind is a supported upload format.
type Kind struct {
	MIMEType  string
	Extension string
}

var (
	JPEG = Kind{MIMEType: "image/jpeg", Extension: ".jpg"}
	HEIF = Kind{MIMEType: "image/heif", Extension: ".heic"}
	PNG  = Kind{MIMEType: "image/png", Extension: ".png"}
)

// ErrUnsupported is the user-facing message for rejected uploads.
const ErrUnsupported = "JPEGまたはHEIFファイルを指定して下さい"

// HEIF brands accepted in the ftyp box.
var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("mif1"), []byte("msf1"),
}

// DetectPhoto accepts JPEG and HEIF photos and rejects everything else
// with core.ErrInvalidInput.
func DetectPhoto(data []byte) (Kind, error) {
	if isHEIF(data) {
		return HEIF, nil
	}
	m := mimetype.Detect(data)
	if m.Is("image/jpeg") {
		return JPEG, nil
	}
	if m.Is("image/heic") || m.Is("image/heif") || m.Is("image/heic-sequence") || m.Is("image/heif-sequence") {
		return HEIF, nil
	}
	return Kind{}, fmt.Errorf("%w: %s (got %s)", core.ErrInvalidInput, ErrUnsupported, m.String())
}

// IsJPEG reports whether data is a JPEG image.
func IsJPEG(data []byte) bool {
	return mimetype.Detect(data).Is("image/jpeg")
}

// IsPNG reports whether data is a PNG image.
func IsPNG(data []byte) bool {
	return mimetype.Detect(data).Is("image/png")
}

// isHEIF checks the ISO BMFF ftyp box for a HEIF brand.
func isHEIF(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := data[8:12]
	for _, b := range heifBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}
