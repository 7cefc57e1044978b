package collage

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitAndCenterExactSize(t *testing.T) {
	cases := []struct{ srcW, srcH, w, h int }{
		{100, 100, 465, 1030}, // upscale, crop sides
		{4000, 1000, 465, 1030},
		{465, 1030, 465, 1030}, // already exact
		{1, 1, 50, 20},
	}
	for _, c := range cases {
		src := SolidImage(c.srcW, c.srcH, color.NRGBA{10, 120, 40, 255})
		out, err := FitAndCenter(src, c.w, c.h)
		require.NoError(t, err)
		assert.Equal(t, c.w, out.Bounds().Dx())
		assert.Equal(t, c.h, out.Bounds().Dy())
	}
}

func TestFitAndCenterCropsCenter(t *testing.T) {
	// wide image, left half red, right half blue: cropping to a square keeps
	// the middle so both halves survive at the edges of the crop
	src := image.NewNRGBA(image.Rect(0, 0, 400, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 400; x++ {
			if x < 200 {
				src.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
			} else {
				src.SetNRGBA(x, y, color.NRGBA{0, 0, 255, 255})
			}
		}
	}
	out, err := FitAndCenter(src, 100, 100)
	require.NoError(t, err)
	left := out.NRGBAAt(5, 50)
	right := out.NRGBAAt(94, 50)
	assert.Greater(t, int(left.R), int(left.B))
	assert.Greater(t, int(right.B), int(right.R))
}

func TestFitToBoxStretches(t *testing.T) {
	src := SolidImage(10, 300, color.NRGBA{90, 90, 90, 255})
	out, err := FitToBox(src, 1395, 1030)
	require.NoError(t, err)
	assert.Equal(t, 1395, out.Bounds().Dx())
	assert.Equal(t, 1030, out.Bounds().Dy())
	// uniform input stays uniform after the stretch
	assert.Equal(t, out.NRGBAAt(0, 0), out.NRGBAAt(1394, 1029))
}

func TestGeometryRejectsBadInput(t *testing.T) {
	src := SolidImage(10, 10, color.NRGBA{A: 255})

	_, err := FitAndCenter(nil, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidImage)
	_, err = FitToBox(nil, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = FitAndCenter(src, 0, 10)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = FitToBox(src, 10, -1)
	assert.ErrorIs(t, err, ErrConfiguration)

	empty := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	_, err = FitAndCenter(empty, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
