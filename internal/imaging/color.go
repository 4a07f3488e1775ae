package imaging

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a displayable color in several representations.
type ColorResult struct {
	Hex string   `json:"hex"` // "#RRGGBB"
	RGB RGBColor `json:"rgb"`
	HSL HSLColor `json:"hsl"`
}

// PixelResult is the value of one scene pixel.
//
// Values holds the raw sample of every channel in channel order, whatever
// the data type. Color is set only for 8-bit gray, RGB and RGBA scenes,
// where the samples map directly to a display color.
type PixelResult struct {
	Label    string       `json:"label,omitempty"`
	X        int          `json:"x"`
	Y        int          `json:"y"`
	Z        int          `json:"z"`
	T        int          `json:"t"`
	DataType string       `json:"data_type"`
	Values   []float64    `json:"values"`
	Color    *ColorResult `json:"color,omitempty"`
}

// SamplePixel reads the pixel at (x, y) of slice z and frame t.
//
// Coordinates are 0-based with origin at the scene's top-left corner; points
// outside the scene, slice or frame ranges are rejected by the scene with
// the corresponding sentinel error.
func SamplePixel(scene *slide.Scene, x, y, z, t int) (*PixelResult, error) {
	r := scene.Rect()
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return nil, fmt.Errorf("%w: coordinates (%d,%d) outside scene bounds %dx%d", slide.ErrInvalidRegion, x, y, r.Width, r.Height)
	}
	block, err := scene.ReadBlock(slide.BlockRequest{
		Rect:   slide.Rect{X: x, Y: y, Width: 1, Height: 1},
		ZRange: slide.Range{First: z, Last: z + 1},
		TRange: slide.Range{First: t, Last: t + 1},
	})
	if err != nil {
		return nil, err
	}

	res := &PixelResult{X: x, Y: y, Z: z, T: t, DataType: block.Type.String()}
	res.Values = make([]float64, block.Channels)
	for c := range res.Values {
		res.Values[c] = block.At(0, 0, c)
	}
	if block.Type == raster.Byte {
		switch block.Channels {
		case 1:
			v := uint8(res.Values[0])
			res.Color = describe(v, v, v)
		case 3, 4:
			res.Color = describe(uint8(res.Values[0]), uint8(res.Values[1]), uint8(res.Values[2]))
		}
	}
	return res, nil
}

// LabeledPoint is a pixel coordinate with an optional descriptive label.
type LabeledPoint struct {
	X     int
	Y     int
	Label string
}

// SamplePixels samples several points of one plane. Results keep the input
// order; any invalid point fails the whole call.
func SamplePixels(scene *slide.Scene, points []LabeledPoint, z, t int) ([]PixelResult, error) {
	results := make([]PixelResult, 0, len(points))
	for _, p := range points {
		px, err := SamplePixel(scene, p.X, p.Y, z, t)
		if err != nil {
			return nil, fmt.Errorf("failed to sample point (%d,%d): %w", p.X, p.Y, err)
		}
		px.Label = p.Label
		results = append(results, *px)
	}
	return results, nil
}

func describe(r, g, b uint8) *ColorResult {
	c, _ := colorful.MakeColor(color.NRGBA{R: r, G: g, B: b, A: 0xff})
	h, s, l := c.Hsl()
	if math.IsNaN(h) {
		h = 0
	}
	return &ColorResult{
		Hex: fmt.Sprintf("#%02X%02X%02X", r, g, b),
		RGB: RGBColor{R: r, G: g, B: b},
		HSL: HSLColor{H: int(math.Round(h)) % 360, S: int(math.Round(s * 100)), L: int(math.Round(l * 100))},
	}
}
