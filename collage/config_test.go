package collage

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLayout(t *testing.T) {
	layout, err := DefaultCanvasConfig().ComputeLayout()
	require.NoError(t, err)

	assert.Equal(t, image.Rect(25, 25, 490, 1055), layout.Panel1)
	assert.Equal(t, image.Rect(500, 25, 1895, 1055), layout.Panel2)
	assert.Equal(t, 465, layout.Panel1.Dx())
	assert.Equal(t, 1395, layout.Panel2.Dx())
	assert.Equal(t, 1030, layout.Panel1.Dy())
	assert.Equal(t, 1030, layout.Panel2.Dy())
}

func TestLayoutFillsCanvasExactly(t *testing.T) {
	cfg := CanvasConfig{Width: 1001, Height: 500, Border: 7, Gap: 3, Ratio1: 0.33, Ratio2: 0.67}
	layout, err := cfg.ComputeLayout()
	require.NoError(t, err)

	// border + panel1 + gap + panel2 + border == width
	total := 2*cfg.Border + cfg.Gap + layout.Panel1.Dx() + layout.Panel2.Dx()
	assert.Equal(t, cfg.Width, total)
	assert.Equal(t, layout.Panel1.Max.X+cfg.Gap, layout.Panel2.Min.X)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []CanvasConfig{
		{Width: 0, Height: 1080, Border: 25, Gap: 10, Ratio1: 0.25, Ratio2: 0.75},
		{Width: 1920, Height: -1, Border: 25, Gap: 10, Ratio1: 0.25, Ratio2: 0.75},
		{Width: 1920, Height: 1080, Border: -1, Gap: 10, Ratio1: 0.25, Ratio2: 0.75},
		{Width: 1920, Height: 1080, Border: 25, Gap: 10, Ratio1: 0.3, Ratio2: 0.75},
		{Width: 1920, Height: 1080, Border: 25, Gap: 10, Ratio1: 0, Ratio2: 1},
		{Width: 100, Height: 100, Border: 50, Gap: 10, Ratio1: 0.25, Ratio2: 0.75},
	}
	for _, cfg := range cases {
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrConfiguration, "config %+v", cfg)
		_, err = cfg.ComputeLayout()
		assert.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestValidateAcceptsDefault(t *testing.T) {
	assert.NoError(t, DefaultCanvasConfig().Validate())
}
