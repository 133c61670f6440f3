package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/heic"

	"multitool/internal/core"
)

// decodeHEIF is swapped in tests.
var decodeHEIF = func(data []byte) (image.Image, error) {
	return heic.Decode(bytes.NewReader(data))
}

// NormalizePhoto accepts a JPEG or HEIF photo and returns it as JPEG.
// HEIF input is decoded and re-encoded so browsers and downstream services
// only ever see JPEG. JPEG input is returned unchanged.
func NormalizePhoto(data []byte) ([]byte, Kind, error) {
	kind, err := DetectPhoto(data)
	if err != nil {
		return nil, Kind{}, err
	}
	if kind != HEIF {
		return data, kind, nil
	}

	img, err := decodeHEIF(data)
	if err != nil {
		return nil, Kind{}, fmt.Errorf("%w: %s (decode heif: %v)", core.ErrInvalidInput, ErrUnsupported, err)
	}
	out, err := encodeJPEG(img)
	if err != nil {
		return nil, Kind{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return out, JPEG, nil
}

// encodeJPEG flattens img to RGB and encodes it at the default quality.
func encodeJPEG(img image.Image) ([]byte, error) {
	b := img.Bounds()
	rgb := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgb, rgb.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: jpeg.DefaultQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
