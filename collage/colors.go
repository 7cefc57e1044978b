package collage

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// OverlayColor is a named solid fill placed behind the product cutout.
type OverlayColor struct {
	Name string
	RGB  color.NRGBA
}

// OverlayPalette holds the named fill colors. The contrast rule only ever
// selects the two ends: the first entry is the light pick and the last the
// dark pick; the middle entries are reserved.
var OverlayPalette = []OverlayColor{
	{Name: "sky_blue", RGB: color.NRGBA{R: 135, G: 206, B: 235, A: 255}},
	{Name: "cream", RGB: color.NRGBA{R: 255, G: 248, B: 220, A: 255}},
	{Name: "tan", RGB: color.NRGBA{R: 210, G: 180, B: 140, A: 255}},
	{Name: "olive", RGB: color.NRGBA{R: 128, G: 128, B: 0, A: 255}},
	{Name: "bottle_green", RGB: color.NRGBA{R: 0, G: 106, B: 78, A: 255}},
}

// A pixel counts as foreground only when effectively fully opaque, so the
// transparent background left by the cutout step never skews the histogram.
const opaqueAlphaThreshold = 250

// Dominant color buckets: 4 bits per channel.
const (
	bucketBits  = 4
	bucketShift = 8 - bucketBits
	bucketCount = 1 << (3 * bucketBits)
)

// DominantColorRGBA extracts the dominant color of an RGBA image, ignoring
// transparent pixels. It quantizes opaque pixels into a fixed RGB histogram,
// picks the most populated bucket (lowest bucket index wins ties) and returns
// the average color inside it, which makes repeated calls on the same image
// return the identical color.
func DominantColorRGBA(img image.Image) (color.NRGBA, error) {
	if img == nil {
		return color.NRGBA{}, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return color.NRGBA{}, fmt.Errorf("%w: zero dimension %v", ErrInvalidImage, bounds)
	}

	counts := make([]uint32, bucketCount)
	sumR := make([]uint64, bucketCount)
	sumG := make([]uint64, bucketCount)
	sumB := make([]uint64, bucketCount)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if uint8(a16>>8) < opaqueAlphaThreshold {
				continue
			}
			r8 := uint8(r16 >> 8)
			g8 := uint8(g16 >> 8)
			b8 := uint8(b16 >> 8)
			bucket := int(r8>>bucketShift)<<(2*bucketBits) |
				int(g8>>bucketShift)<<bucketBits |
				int(b8>>bucketShift)
			counts[bucket]++
			sumR[bucket] += uint64(r8)
			sumG[bucket] += uint64(g8)
			sumB[bucket] += uint64(b8)
		}
	}

	best := -1
	var bestCount uint32
	for i, n := range counts {
		if n > bestCount {
			best = i
			bestCount = n
		}
	}
	if best < 0 {
		return color.NRGBA{}, ErrEmptyForeground
	}
	n := uint64(bestCount)
	return color.NRGBA{
		R: uint8(sumR[best] / n),
		G: uint8(sumG[best] / n),
		B: uint8(sumB[best] / n),
		A: 255,
	}, nil
}

// Lightness returns the HLS lightness of an RGB color in [0,1]:
// (max(R,G,B) + min(R,G,B)) / 2 over normalized channels.
func Lightness(c color.NRGBA) float64 {
	col := colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
	_, _, l := col.Hsl()
	return l
}

// SelectOverlayColor picks the overlay fill that contrasts with the dominant
// product color. Light products (L > 0.5) get the dark end of the palette,
// everything else (including L == 0.5 exactly) gets the light end. There are
// exactly two possible outputs; no interpolation.
func SelectOverlayColor(dominant color.NRGBA) OverlayColor {
	if Lightness(dominant) > 0.5 {
		return OverlayPalette[len(OverlayPalette)-1]
	}
	return OverlayPalette[0]
}
