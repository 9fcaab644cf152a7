package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"voxelmap.ai/internal/color"
	"voxelmap.ai/internal/config"
	"voxelmap.ai/internal/terrain"
)

// shadeFactor converts one node of relief into channel steps.
const shadeFactor = 2

var ErrImageTooLarge = errors.New("image too large")

// DimensionError reports a grid that does not fit an image.
type DimensionError struct {
	Axis string
	Size int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s %d does not fit into an image", e.Axis, e.Size)
}

func (e *DimensionError) Unwrap() error { return ErrImageTooLarge }

// HeightDiff is the summed relief of a cell along both grid axes.
func HeightDiff(t *terrain.Terrain, x, y int) int16 {
	return terrain.AddSat(t.HeightDiffX(x, y), t.HeightDiffY(x, y))
}

// Shade darkens c for negative relief and lightens it for positive relief.
func Shade(c color.Color, diff int16) color.Color {
	m := int32(diff)
	switch {
	case m < 0:
		return c.Darken(shadeAmount(-m))
	case m > 0:
		return c.LightenUp(shadeAmount(m))
	}
	return c
}

func shadeAmount(m int32) uint8 {
	return uint8(min(255, shadeFactor*min(m, 255)))
}

// Render flattens the terrain into opaque pixels. Cells without a color
// show the background.
func Render(t *terrain.Terrain, cfg *config.Config) (*image.RGBA, error) {
	if t.Width() > math.MaxInt32 {
		return nil, &DimensionError{Axis: "width", Size: t.Width()}
	}
	if t.Height() > math.MaxInt32 {
		return nil, &DimensionError{Axis: "height", Size: t.Height()}
	}

	bg := cfg.BackgroundColor
	img := image.NewRGBA(image.Rect(0, 0, t.Width(), t.Height()))
	for y := 0; y < t.Height(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < t.Width(); x++ {
			c, ok := t.Color(x, y)
			if !ok {
				c = bg
			}
			if cfg.HillShading.Enabled {
				c = Shade(c, HeightDiff(t, x, y))
			}
			c = c.Over(bg)
			p := row[4*x : 4*x+4 : 4*x+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, 255
		}
	}
	return img, nil
}
