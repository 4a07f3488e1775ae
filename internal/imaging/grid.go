package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// GridOverlay draws a coordinate grid over a block read from region of a
// scene. spacing is in scene pixels, so the labels give full-resolution
// scene coordinates even when the block was downscaled.
func GridOverlay(block *raster.Raster, region slide.Rect, spacing int, showCoordinates bool, gridColorHex string) (*raster.Raster, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", spacing)
	}
	d, err := Displayable(block, "png")
	if err != nil {
		return nil, err
	}
	src, err := d.To8Bit().ToImage()
	if err != nil {
		return nil, err
	}

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 0, 0, 128} // Default: semi-transparent red
	}

	bounds := src.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, src, bounds.Min, draw.Src)

	sx := float64(block.Width) / float64(region.Width)
	sy := float64(block.Height) / float64(region.Height)
	first := func(origin int) int { return (origin/spacing + 1) * spacing }

	for gx := first(region.X); gx < region.X+region.Width; gx += spacing {
		x := int(float64(gx-region.X) * sx)
		for y := 0; y < bounds.Dy(); y++ {
			blend(result, x, y, gridColor)
		}
	}
	for gy := first(region.Y); gy < region.Y+region.Height; gy += spacing {
		y := int(float64(gy-region.Y) * sy)
		for x := 0; x < bounds.Dx(); x++ {
			blend(result, x, y, gridColor)
		}
	}

	if showCoordinates {
		labelColor := color.RGBA{255, 255, 255, 255}
		bgColor := color.RGBA{0, 0, 0, 180}
		for gy := first(region.Y); gy < region.Y+region.Height; gy += spacing {
			for gx := first(region.X); gx < region.X+region.Width; gx += spacing {
				x := int(float64(gx-region.X) * sx)
				y := int(float64(gy-region.Y) * sy)
				drawLabel(result, x+2, y+2, fmt.Sprintf("%d,%d", gx, gy), labelColor, bgColor)
			}
		}
	}
	return raster.FromImage(result), nil
}

func blend(img *image.RGBA, x, y int, c color.RGBA) {
	if !(image.Point{x, y}.In(img.Bounds())) {
		return
	}
	if c.A == 0xff {
		img.SetRGBA(x, y, c)
		return
	}
	bg := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(f, b uint8) uint8 { return uint8((uint32(f)*a + uint32(b)*(255-a)) / 255) }
	img.SetRGBA(x, y, color.RGBA{mix(c.R, bg.R), mix(c.G, bg.G), mix(c.B, bg.B), 0xff})
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	var a uint8 = 255
	switch len(hex) {
	case 7:
	case 9:
		v, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		a = uint8(v)
		hex = hex[:7]
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLabel draws text in the 7x13 bitmap face on a translucent box whose
// top-left corner is (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(fg), Face: face}
	width := d.MeasureString(text).Ceil()
	height := face.Height

	for dy := -1; dy <= height; dy++ {
		for dx := -1; dx <= width; dx++ {
			blend(img, x+dx, y+dy, bg)
		}
	}
	d.Dot = fixed.P(x, y+face.Ascent)
	d.DrawString(text)
}
