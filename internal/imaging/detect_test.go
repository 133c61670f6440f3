package imaging

import (
	"errors"
	"testing"

	"multitool/internal/core"
)

func heifHeader(brand string) []byte {
	b := []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'}
	b = append(b, brand...)
	return append(b, make([]byte, 16)...)
}

func TestDetectPhoto(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}, make([]byte, 32)...)
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)

	cases := []struct {
		name string
		data []byte
		want Kind
		ok   bool
	}{
		{"jpeg", jpeg, JPEG, true},
		{"heic", heifHeader("heic"), HEIF, true},
		{"mif1", heifHeader("mif1"), HEIF, true},
		{"mp4 brand", heifHeader("isom"), Kind{}, false},
		{"png", png, Kind{}, false},
		{"text", []byte("hello world"), Kind{}, false},
		{"empty", nil, Kind{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectPhoto(tc.data)
			if tc.ok {
				if err != nil || got != tc.want {
					t.Fatalf("expected %v, got %v (err=%v)", tc.want, got, err)
				}
				return
			}
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if !IsPNG(png) || IsPNG(jpeg) {
		t.Fatal("IsPNG misclassified input")
	}
}
