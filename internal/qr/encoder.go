// Package qr renders proxy deep links as QR code images.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// defaultSize is the rendered image edge in pixels.
const defaultSize = 256

// Encoder produces PNG QR codes for deep links.
type Encoder struct {
	size int
}

// New returns an Encoder rendering square images of the given pixel size.
func New(size int) *Encoder {
	if size <= 0 {
		size = defaultSize
	}
	return &Encoder{size: size}
}

// Encode returns the PNG bytes encoding text.
func (e *Encoder) Encode(text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("nothing to encode")
	}
	png, err := qrcode.Encode(text, qrcode.Medium, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
