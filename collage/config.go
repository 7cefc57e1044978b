package collage

import (
	"fmt"
	"image"
	"math"
)

// CanvasConfig describes the collage canvas: outer dimensions, border and
// gap thickness and how the usable width is split between the product panel
// (left) and the variants panel (right). It is passed explicitly into the
// compositor instead of living in process-wide state so tests can run with
// alternate layouts.
type CanvasConfig struct {
	Width  int
	Height int
	// Border thickness on all four edges, in pixels.
	Border int
	// Gap between the two panels, in pixels.
	Gap int
	// Width ratios for panel 1 and panel 2. Must sum to 1.
	Ratio1 float64
	Ratio2 float64
}

// DefaultCanvasConfig returns the production layout: 1920x1080 canvas,
// 25px border, 10px gap, 25%/75% split.
func DefaultCanvasConfig() CanvasConfig {
	return CanvasConfig{
		Width:  1920,
		Height: 1080,
		Border: 25,
		Gap:    10,
		Ratio1: 0.25,
		Ratio2: 0.75,
	}
}

// Layout holds the derived panel rectangles in canvas coordinates.
type Layout struct {
	Panel1 image.Rectangle
	Panel2 image.Rectangle
}

const ratioEpsilon = 1e-6

// Validate reports ErrConfiguration when the canvas cannot be laid out:
// non-positive dimensions or thicknesses, ratios that do not sum to 1, or a
// border/gap combination that leaves no usable panel space.
func (c CanvasConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrConfiguration, c.Width, c.Height)
	}
	if c.Border < 0 || c.Gap < 0 {
		return fmt.Errorf("%w: border %d, gap %d", ErrConfiguration, c.Border, c.Gap)
	}
	if c.Ratio1 <= 0 || c.Ratio2 <= 0 || math.Abs(c.Ratio1+c.Ratio2-1) > ratioEpsilon {
		return fmt.Errorf("%w: ratios %v + %v must sum to 1", ErrConfiguration, c.Ratio1, c.Ratio2)
	}
	if c.Width-2*c.Border-c.Gap < 2 || c.Height-2*c.Border < 1 {
		return fmt.Errorf("%w: border and gap leave no panel space", ErrConfiguration)
	}
	return nil
}

// ComputeLayout derives the two panel rectangles. Panel 1 width is
// floor(usable * Ratio1); panel 2 takes the remainder so that
// border*2 + gap + panel1 + panel2 == canvas width exactly.
func (c CanvasConfig) ComputeLayout() (Layout, error) {
	if err := c.Validate(); err != nil {
		return Layout{}, err
	}
	usableW := c.Width - 2*c.Border - c.Gap
	usableH := c.Height - 2*c.Border
	panel1W := int(float64(usableW) * c.Ratio1)
	panel2W := usableW - panel1W

	p1 := image.Rect(c.Border, c.Border, c.Border+panel1W, c.Border+usableH)
	p2x := c.Border + panel1W + c.Gap
	p2 := image.Rect(p2x, c.Border, p2x+panel2W, c.Border+usableH)
	return Layout{Panel1: p1, Panel2: p2}, nil
}
