package collage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Enhancement pass tuning. Applied after compositing, in a fixed order, so
// the same inputs always produce the same bytes.
const (
	unsharpSigma     = 2.0
	unsharpPercent   = 80
	unsharpThreshold = 3
	contrastBoost    = 8
	saturationBoost  = 12
)

// DecodeImage decodes PNG, JPEG or WebP bytes into an image, wrapping any
// decode failure as ErrInvalidImage.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero dimension %v", ErrInvalidImage, b)
	}
	return img, nil
}

// EncodePNG renders an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateCollage assembles the final canvas:
//
//  1. background template crop-to-filled over the whole canvas,
//  2. image 2 stretched into the right panel,
//  3. the solid overlay rectangle in the left panel,
//  4. the product cutout crop-to-filled into the left panel and
//     alpha-composited over the overlay.
//
// The border and the gap between panels are never painted over, so the
// template shows through there. After compositing the enhancement pass runs:
// unsharp mask, then contrast +8%, then saturation +12%.
func CreateCollage(cutout, img2, template image.Image, overlay OverlayColor, cfg CanvasConfig) (*image.NRGBA, error) {
	layout, err := cfg.ComputeLayout()
	if err != nil {
		return nil, err
	}

	canvas, err := FitAndCenter(template, cfg.Width, cfg.Height)
	if err != nil {
		return nil, fmt.Errorf("background template: %w", err)
	}

	p1, p2 := layout.Panel1, layout.Panel2

	right, err := FitToBox(img2, p2.Dx(), p2.Dy())
	if err != nil {
		return nil, fmt.Errorf("image 2: %w", err)
	}
	canvas = imaging.Paste(canvas, right, p2.Min)

	canvas = imaging.Paste(canvas, SolidImage(p1.Dx(), p1.Dy(), overlay.RGB), p1.Min)

	left, err := FitAndCenter(cutout, p1.Dx(), p1.Dy())
	if err != nil {
		return nil, fmt.Errorf("image 1: %w", err)
	}
	canvas = imaging.Overlay(canvas, left, p1.Min, 1.0)
	return enhance(canvas), nil
}

// enhance runs the post-compositing pass in its fixed order: unsharp mask,
// then contrast +8%, then saturation +12%. The order is part of the output
// contract; reordering shifts pixel values.
func enhance(img *image.NRGBA) *image.NRGBA {
	img = unsharpMask(img, unsharpSigma, unsharpPercent, unsharpThreshold)
	img = imaging.AdjustContrast(img, contrastBoost)
	return imaging.AdjustSaturation(img, saturationBoost)
}

// unsharpMask sharpens by blending the image against a blurred copy: where a
// channel differs from the blur by at least threshold, the difference is
// amplified by percent. Uniform regions pass through untouched.
func unsharpMask(img *image.NRGBA, sigma float64, percent, threshold int) *image.NRGBA {
	blurred := imaging.Blur(img, sigma)
	out := imaging.Clone(img)
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := out.PixOffset(b.Min.X, y)
		brow := blurred.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			for c := 0; c < 3; c++ {
				orig := int(out.Pix[row+c])
				diff := orig - int(blurred.Pix[brow+c])
				if diff >= threshold || diff <= -threshold {
					out.Pix[row+c] = clampByte(orig + diff*percent/100)
				}
			}
			row += 4
			brow += 4
		}
	}
	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// SolidImage builds a uniform w x h image.
func SolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}
