package collage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cutoutFixture(w, h int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// opaque product in the middle, transparent margin around it
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	return img
}

func TestCreateCollageOutputSize(t *testing.T) {
	cfg := DefaultCanvasConfig()
	cutout := cutoutFixture(300, 400, color.NRGBA{200, 40, 40, 255})
	img2 := SolidImage(640, 480, color.NRGBA{40, 40, 200, 255})
	template := SolidImage(800, 600, color.NRGBA{250, 240, 245, 255})

	out, err := CreateCollage(cutout, img2, template, SelectOverlayColor(color.NRGBA{200, 40, 40, 255}), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1920, out.Bounds().Dx())
	assert.Equal(t, 1080, out.Bounds().Dy())
}

func TestCreateCollageDeterministic(t *testing.T) {
	cfg := DefaultCanvasConfig()
	cutout := cutoutFixture(200, 200, color.NRGBA{230, 230, 230, 255})
	img2 := SolidImage(300, 300, color.NRGBA{30, 90, 160, 255})
	template := SolidImage(500, 500, color.NRGBA{245, 225, 230, 255})
	overlay := SelectOverlayColor(color.NRGBA{230, 230, 230, 255})

	first, err := CreateCollage(cutout, img2, template, overlay, cfg)
	require.NoError(t, err)
	second, err := CreateCollage(cutout, img2, template, overlay, cfg)
	require.NoError(t, err)

	b1, err := EncodePNG(first)
	require.NoError(t, err)
	b2, err := EncodePNG(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b1, b2), "same inputs must produce identical bytes")
}

func TestCreateCollageGapShowsTemplate(t *testing.T) {
	cfg := DefaultCanvasConfig()
	templateColor := color.NRGBA{250, 218, 221, 255}
	cutout := cutoutFixture(200, 200, color.NRGBA{10, 10, 10, 255})
	img2 := SolidImage(300, 300, color.NRGBA{0, 0, 0, 255})

	out, err := CreateCollage(cutout, img2, SolidImage(100, 100, templateColor),
		SelectOverlayColor(color.NRGBA{10, 10, 10, 255}), cfg)
	require.NoError(t, err)

	layout, err := cfg.ComputeLayout()
	require.NoError(t, err)

	// sample the middle of the gap strip and a border corner: both should be
	// near the template color, not the overlay or either panel
	gapX := layout.Panel1.Max.X + cfg.Gap/2
	gap := out.NRGBAAt(gapX, cfg.Height/2)
	border := out.NRGBAAt(cfg.Border/2, cfg.Border/2)
	for _, px := range []color.NRGBA{gap, border} {
		assert.InDelta(t, int(templateColor.R), int(px.R), 40)
		assert.InDelta(t, int(templateColor.G), int(px.G), 40)
		assert.InDelta(t, int(templateColor.B), int(px.B), 40)
	}
}

func TestCreateCollageOverlayUnderCutout(t *testing.T) {
	cfg := DefaultCanvasConfig()
	// dark product: overlay should be sky blue, visible through the cutout's
	// transparent margin inside panel 1
	cutout := cutoutFixture(465, 1030, color.NRGBA{5, 5, 5, 255})
	out, err := CreateCollage(cutout, SolidImage(10, 10, color.NRGBA{128, 128, 128, 255}),
		SolidImage(10, 10, color.NRGBA{255, 255, 255, 255}),
		SelectOverlayColor(color.NRGBA{5, 5, 5, 255}), cfg)
	require.NoError(t, err)

	layout, _ := cfg.ComputeLayout()
	// a few px inside panel 1's corner sits in the transparent margin
	px := out.NRGBAAt(layout.Panel1.Min.X+5, layout.Panel1.Min.Y+5)
	assert.Greater(t, int(px.B), int(px.R), "overlay under a dark product should read blue")
}

func TestCreateCollagePropagatesConfigError(t *testing.T) {
	bad := CanvasConfig{Width: 10, Height: 10, Border: 20, Gap: 5, Ratio1: 0.25, Ratio2: 0.75}
	_, err := CreateCollage(SolidImage(5, 5, color.NRGBA{A: 255}), SolidImage(5, 5, color.NRGBA{A: 255}),
		SolidImage(5, 5, color.NRGBA{A: 255}), OverlayPalette[0], bad)
	assert.ErrorIs(t, err, ErrConfiguration)
}

// Pinned outputs of the enhancement pass over uniform fixtures. Mid-gray is a
// fixed point of the +8% contrast curve and saturation leaves grays alone; the
// colored fixture moves under both adjustments, so any change to the constants
// or to the sharpen -> contrast -> saturation order shows up here.
func TestEnhanceGoldenValues(t *testing.T) {
	cases := []struct {
		name string
		in   color.NRGBA
		want color.NRGBA
	}{
		{"mid gray is a fixed point", color.NRGBA{128, 128, 128, 255}, color.NRGBA{128, 128, 128, 255}},
		{"dark gray pushed darker", color.NRGBA{64, 64, 64, 255}, color.NRGBA{58, 58, 58, 255}},
		{"light gray pushed lighter", color.NRGBA{200, 200, 200, 255}, color.NRGBA{206, 206, 206, 255}},
		{"muted red gains contrast and saturation", color.NRGBA{180, 100, 100, 255}, color.NRGBA{190, 93, 93, 255}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := enhance(SolidImage(32, 32, tc.in))
			assert.Equal(t, SolidImage(32, 32, tc.want).Pix, out.Pix)
		})
	}
}

func TestUnsharpMaskUniformNoOp(t *testing.T) {
	img := SolidImage(64, 64, color.NRGBA{120, 140, 160, 255})
	out := unsharpMask(img, unsharpSigma, unsharpPercent, unsharpThreshold)
	assert.Equal(t, img.Pix, out.Pix, "uniform image has no edges to sharpen")
}

func TestUnsharpMaskAmplifiesEdges(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 20 {
				img.SetNRGBA(x, y, color.NRGBA{60, 60, 60, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 255})
			}
		}
	}
	out := unsharpMask(img, unsharpSigma, unsharpPercent, unsharpThreshold)
	// the bright side of the edge overshoots, the dark side undershoots
	assert.Greater(t, int(out.NRGBAAt(21, 20).R), 200)
	assert.Less(t, int(out.NRGBAAt(18, 20).R), 60)
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, SolidImage(12, 9, color.NRGBA{1, 2, 3, 255})))

	img, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())

	_, err = DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)
	_, err = DecodeImage(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
