package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// BlockResult contains an encoded block ready to be returned to a client.
type BlockResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Channels    int    `json:"channels"`
	DataType    string `json:"data_type"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Region is a rectangle in scene pixel coordinates given by its corners.
// (X1, Y1) is inclusive and (X2, Y2) exclusive.
type Region struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// Rect converts the corners to an origin and size.
func (r Region) Rect() slide.Rect {
	return slide.Rect{X: r.X1, Y: r.Y1, Width: r.X2 - r.X1, Height: r.Y2 - r.Y1}
}

// ReadRegion reads a region of the scene scaled by scale. Out-of-scene parts
// are clamped by the scene; an inverted region is rejected here.
func ReadRegion(scene *slide.Scene, region Region, scale float64, channels []int) (*raster.Raster, error) {
	if region.X1 >= region.X2 || region.Y1 >= region.Y2 {
		return nil, fmt.Errorf("invalid region: x1 must be < x2, y1 must be < y2")
	}
	req := slide.BlockRequest{Rect: region.Rect(), Channels: channels}
	if scale > 0 && scale != 1.0 {
		req.Size = slide.Size{
			Width:  max(1, int(float64(req.Rect.Width)*scale)),
			Height: max(1, int(float64(req.Rect.Height)*scale)),
		}
	}
	return scene.ReadBlock(req)
}

// VisibleRect is the part of rect that lies inside the scene, the area a
// ReadBlock of rect actually samples.
func VisibleRect(scene *slide.Scene, rect slide.Rect) (slide.Rect, error) {
	r := scene.Rect()
	vis := rect.Image().Intersect(slide.Rect{Width: r.Width, Height: r.Height}.Image())
	if vis.Empty() {
		return slide.Rect{}, fmt.Errorf("%w: region %+v is outside the scene", slide.ErrInvalidRegion, rect)
	}
	return slide.RectFromImage(vis), nil
}

// FitSize scales w x h down to fit in a square of side limit. The aspect
// ratio is kept and sizes never grow.
func FitSize(w, h, limit int) slide.Size {
	if limit <= 0 || (w <= limit && h <= limit) {
		return slide.Size{Width: w, Height: h}
	}
	if w >= h {
		return slide.Size{Width: limit, Height: max(1, h*limit/w)}
	}
	return slide.Size{Width: max(1, w*limit/h), Height: limit}
}

// NamedRegion resolves a named part of the scene such as "top-left" or
// "center".
func NamedRegion(scene *slide.Scene, name string) (Region, error) {
	r := scene.Rect()
	w, h := r.Width, r.Height
	midX, midY := w/2, h/2

	var g Region
	switch name {
	case "full", "":
		g = Region{0, 0, w, h}
	case "top-left":
		g = Region{0, 0, midX, midY}
	case "top-right":
		g = Region{midX, 0, w, midY}
	case "bottom-left":
		g = Region{0, midY, midX, h}
	case "bottom-right":
		g = Region{midX, midY, w, h}
	case "top-half":
		g = Region{0, 0, w, midY}
	case "bottom-half":
		g = Region{0, midY, w, h}
	case "left-half":
		g = Region{0, 0, midX, h}
	case "right-half":
		g = Region{midX, 0, w, h}
	case "center":
		// Center 50% of the scene
		g = Region{w / 4, h / 4, w - w/4, h - h/4}
	default:
		return Region{}, fmt.Errorf("unknown region: %s", name)
	}
	return g, nil
}

// Displayable reduces a raster to something a PNG or JPEG can carry: the
// first plane, one or three channels (or four), and 8 bits when the target
// cannot hold more.
func Displayable(r *raster.Raster, format string) (*raster.Raster, error) {
	if r.NumPlanes() > 1 {
		r = r.Plane(0, 0)
	}
	if r.Channels != 1 && r.Channels != 3 && r.Channels != 4 {
		var err error
		if r, err = r.SelectChannels([]int{0}); err != nil {
			return nil, err
		}
	}
	if r.Type != raster.Byte && (format == "jpeg" || r.Type != raster.Uint16) {
		r = r.To8Bit()
	}
	return r, nil
}

func encoderFor(format string, quality int) (imgio.Encoder, string, error) {
	switch strings.ToLower(format) {
	case "", "png":
		return imgio.PNGEncoder(), "image/png", nil
	case "jpeg", "jpg":
		if quality < 1 || quality > 100 {
			quality = 90
		}
		return imgio.JPEGEncoder(quality), "image/jpeg", nil
	case "bmp":
		return imgio.BMPEncoder(), "image/bmp", nil
	}
	return nil, "", fmt.Errorf("unsupported output format: %s", format)
}

// FormatFromPath picks an output format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".bmp":
		return "bmp"
	}
	return "png"
}

// WriteBlock encodes r as format ("png", "jpeg" or "bmp") to w and returns
// the MIME type written.
func WriteBlock(w io.Writer, r *raster.Raster, format string, quality int) (string, error) {
	format = strings.ToLower(format)
	if format == "jpg" {
		format = "jpeg"
	}
	enc, mime, err := encoderFor(format, quality)
	if err != nil {
		return "", err
	}
	d, err := Displayable(r, format)
	if err != nil {
		return "", err
	}
	img, err := d.ToImage()
	if err != nil {
		return "", err
	}
	if err := enc(w, img); err != nil {
		return "", fmt.Errorf("failed to encode block: %w", err)
	}
	return mime, nil
}

// EncodeBlock encodes r and wraps it as base64 for JSON transport.
func EncodeBlock(r *raster.Raster, format string, quality int) (*BlockResult, error) {
	var buf bytes.Buffer
	mime, err := WriteBlock(&buf, r, format, quality)
	if err != nil {
		return nil, err
	}
	return &BlockResult{
		Width:       r.Width,
		Height:      r.Height,
		Channels:    r.Channels,
		DataType:    r.Type.String(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    mime,
	}, nil
}

// SaveBlock writes r to path in the format implied by its extension.
func SaveBlock(path string, r *raster.Raster, quality int) error {
	format := FormatFromPath(path)
	enc, _, err := encoderFor(format, quality)
	if err != nil {
		return err
	}
	d, err := Displayable(r, format)
	if err != nil {
		return err
	}
	img, err := d.ToImage()
	if err != nil {
		return err
	}
	return imgio.Save(path, img, enc)
}
