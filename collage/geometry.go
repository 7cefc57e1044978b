package collage

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// FitAndCenter scales src to cover a w x h box and center-crops the excess.
// Aspect ratio is preserved; the output is always exactly w x h.
func FitAndCenter(src image.Image, w, h int) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrConfiguration, w, h)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero dimension %v", ErrInvalidImage, b)
	}
	return imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos), nil
}

// FitToBox stretches src to exactly w x h without preserving aspect ratio.
func FitToBox(src image.Image, w, h int) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrConfiguration, w, h)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero dimension %v", ErrInvalidImage, b)
	}
	return imaging.Resize(src, w, h, imaging.Lanczos), nil
}
