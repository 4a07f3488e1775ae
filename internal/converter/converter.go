// Package converter exports scenes as pyramidal Aperio-style SVS files.
package converter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
	"github.com/ironsheep/slide-tools-mcp/internal/tiff"
)

// ErrInvalidParams reports conversion parameters that cannot be honored.
var ErrInvalidParams = errors.New("invalid conversion parameters")

// Params controls the written pyramid.
type Params struct {
	// Compression of the pyramid tiles: Jpeg, Jpeg2000, Zlib or
	// Uncompressed.
	Compression slide.Compression

	// Quality of lossy codecs, 1-100. For Jpeg2000, 100 selects the
	// reversible (lossless) transform.
	Quality int

	// TileWidth and TileHeight must be multiples of 16.
	TileWidth  int
	TileHeight int

	// NumZoomLevels is the number of pyramid levels including the full
	// resolution. Zero halves the image until it fits in one tile.
	NumZoomLevels int

	// Z and T select the plane of multi-plane scenes.
	Z, T int

	// Progress, when set, is called after each tile with the number of
	// tiles written so far and the total.
	Progress func(done, total int)
}

// DefaultParams returns JPEG at quality 90 with 256x256 tiles.
func DefaultParams() Params {
	return Params{
		Compression: slide.Jpeg,
		Quality:     90,
		TileWidth:   256,
		TileHeight:  256,
	}
}

// Associated is an auxiliary image written after the pyramid. Name is the
// keyword readers use to recognize it, such as "label" or "macro".
type Associated struct {
	Name  string
	Scene *slide.Scene
}

// AssociatedImages collects the label and macro images of s, the auxiliary
// images an SVS file can carry.
func AssociatedImages(s *slide.Slide) ([]Associated, error) {
	var aux []Associated
	for _, name := range s.AuxImageNames() {
		lower := strings.ToLower(name)
		if lower != "label" && lower != "macro" {
			continue
		}
		img, err := s.AuxImage(name)
		if err != nil {
			return nil, err
		}
		aux = append(aux, Associated{Name: lower, Scene: img})
	}
	return aux, nil
}

type plan struct {
	params  Params
	tag     int
	dtype   raster.DataType
	rect    slide.Rect
	levels  []image.Point
	total   int
	written int
}

func (p Params) validate(scene *slide.Scene) (*plan, error) {
	tag, ok := tiff.TagFor(p.Compression)
	if !ok {
		return nil, fmt.Errorf("%w: compression %s cannot be written", ErrInvalidParams, p.Compression)
	}
	if p.TileWidth <= 0 || p.TileHeight <= 0 || p.TileWidth%16 != 0 || p.TileHeight%16 != 0 {
		return nil, fmt.Errorf("%w: tile size %dx%d is not a positive multiple of 16", ErrInvalidParams, p.TileWidth, p.TileHeight)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return nil, fmt.Errorf("%w: quality %d outside 1-100", ErrInvalidParams, p.Quality)
	}
	if p.NumZoomLevels < 0 {
		return nil, fmt.Errorf("%w: %d zoom levels", ErrInvalidParams, p.NumZoomLevels)
	}
	if p.Z < 0 || p.Z >= scene.NumZSlices() || p.T < 0 || p.T >= scene.NumTFrames() {
		return nil, fmt.Errorf("%w: plane z=%d t=%d", ErrInvalidParams, p.Z, p.T)
	}

	dt, err := scene.ChannelDataType(0)
	if err != nil {
		return nil, err
	}
	for c := 1; c < scene.NumChannels(); c++ {
		if other, _ := scene.ChannelDataType(c); other != dt {
			return nil, fmt.Errorf("%w: channels mix %s and %s", ErrInvalidParams, dt, other)
		}
	}
	switch p.Compression {
	case slide.Jpeg:
		if dt != raster.Byte || (scene.NumChannels() != 1 && scene.NumChannels() != 3) {
			return nil, fmt.Errorf("%w: jpeg needs 1 or 3 channels of uint8", ErrInvalidParams)
		}
	case slide.Jpeg2000:
		if (dt != raster.Byte && dt != raster.Uint16) || scene.NumChannels() == 2 || scene.NumChannels() > 4 {
			return nil, fmt.Errorf("%w: jpeg 2000 needs 1, 3 or 4 channels of uint8 or uint16", ErrInvalidParams)
		}
	}

	pl := &plan{params: p, tag: tag, dtype: dt, rect: scene.Rect()}
	w, h := pl.rect.Width, pl.rect.Height
	for {
		pl.levels = append(pl.levels, image.Pt(w, h))
		if p.NumZoomLevels > 0 && len(pl.levels) == p.NumZoomLevels {
			break
		}
		if p.NumZoomLevels == 0 && w <= p.TileWidth && h <= p.TileHeight {
			break
		}
		if w == 1 && h == 1 {
			break
		}
		w, h = max(1, (w+1)/2), max(1, (h+1)/2)
	}
	for _, l := range pl.levels {
		pl.total += ((l.X + p.TileWidth - 1) / p.TileWidth) * ((l.Y + p.TileHeight - 1) / p.TileHeight)
	}
	return pl, nil
}

// Write encodes scene, its reduced levels and the associated images as an
// SVS file.
func Write(ctx context.Context, w io.Writer, scene *slide.Scene, p Params, aux ...Associated) error {
	pl, err := p.validate(scene)
	if err != nil {
		return err
	}

	var pages []*tiff.Page
	for i, size := range pl.levels {
		page, err := pl.pyramidPage(ctx, scene, i, size)
		if err != nil {
			return err
		}
		pages = append(pages, page)
	}
	for _, a := range aux {
		page, err := associatedPage(a)
		if err != nil {
			return err
		}
		pages = append(pages, page)
	}
	return tiff.Encode(w, pages)
}

// ConvertFile writes scene to path. A partially written file is removed when
// conversion fails.
func ConvertFile(ctx context.Context, scene *slide.Scene, path string, p Params, aux ...Associated) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(ctx, f, scene, p, aux...); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func (pl *plan) pyramidPage(ctx context.Context, scene *slide.Scene, level int, size image.Point) (*tiff.Page, error) {
	p := pl.params
	channels := scene.NumChannels()
	page := &tiff.Page{
		Width:           size.X,
		Height:          size.Y,
		Tiled:           true,
		TileWidth:       p.TileWidth,
		TileHeight:      p.TileHeight,
		SamplesPerPixel: channels,
		BitsPerSample:   pl.dtype.Size() * 8,
		SampleFormat:    sampleFormat(pl.dtype),
		Compression:     pl.tag,
		Photometric:     tiff.PhotometricFor(channels, pl.tag),
		Description:     pl.description(scene, level, size),
	}
	if level > 0 {
		page.SubfileType = tiff.SubfileReduced
	}

	scaleX := float64(pl.rect.Width) / float64(size.X)
	scaleY := float64(pl.rect.Height) / float64(size.Y)
	bounds := image.Rect(0, 0, size.X, size.Y)
	for ty := 0; ty < size.Y; ty += p.TileHeight {
		for tx := 0; tx < size.X; tx += p.TileWidth {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lr := image.Rect(tx, ty, tx+p.TileWidth, ty+p.TileHeight).Intersect(bounds)
			src := image.Rect(
				int(math.Floor(float64(lr.Min.X)*scaleX)),
				int(math.Floor(float64(lr.Min.Y)*scaleY)),
				int(math.Ceil(float64(lr.Max.X)*scaleX)),
				int(math.Ceil(float64(lr.Max.Y)*scaleY)),
			).Intersect(image.Rect(0, 0, pl.rect.Width, pl.rect.Height))

			block, err := scene.ReadBlock(slide.BlockRequest{
				Rect:   slide.RectFromImage(src),
				Size:   slide.Size{Width: lr.Dx(), Height: lr.Dy()},
				ZRange: slide.Range{First: p.Z, Last: p.Z + 1},
				TRange: slide.Range{First: p.T, Last: p.T + 1},
			})
			if err != nil {
				return nil, fmt.Errorf("level %d tile at %d,%d: %w", level, tx, ty, err)
			}
			tile, err := raster.New(p.TileWidth, p.TileHeight, channels, pl.dtype)
			if err != nil {
				return nil, err
			}
			if err := tile.Paste(block, 0, 0, 0, 0); err != nil {
				return nil, err
			}
			data, err := tiff.EncodeTile(tile, pl.tag, p.Quality)
			if err != nil {
				return nil, fmt.Errorf("level %d tile at %d,%d: %w", level, tx, ty, err)
			}
			page.Tiles = append(page.Tiles, data)

			pl.written++
			if p.Progress != nil {
				p.Progress(pl.written, pl.total)
			}
		}
	}
	return page, nil
}

func (pl *plan) description(scene *slide.Scene, level int, size image.Point) string {
	p := pl.params
	var b strings.Builder
	b.WriteString("Aperio Image Library v12.0.0 (slide-tools-mcp)\r\n")
	fmt.Fprintf(&b, "%dx%d", pl.rect.Width, pl.rect.Height)
	if level > 0 {
		fmt.Fprintf(&b, " -> %dx%d", size.X, size.Y)
		return b.String()
	}
	fmt.Fprintf(&b, " [0,0 %dx%d] (%dx%d) %s", size.X, size.Y, p.TileWidth, p.TileHeight, codecName(p))
	if mag := scene.Magnification(); mag > 0 {
		fmt.Fprintf(&b, "|AppMag = %g", mag)
	}
	if res := scene.Resolution().X; res > 0 {
		fmt.Fprintf(&b, "|MPP = %.4f", res*1e6)
	}
	return b.String()
}

func codecName(p Params) string {
	switch p.Compression {
	case slide.Jpeg:
		return fmt.Sprintf("JPEG/RGB Q=%d", p.Quality)
	case slide.Jpeg2000:
		return fmt.Sprintf("J2K/RGB Q=%d", p.Quality)
	case slide.Zlib:
		return "Deflate"
	}
	return "Raw"
}

func sampleFormat(dt raster.DataType) int {
	switch dt {
	case raster.Int8, raster.Int16, raster.Int32:
		return 2
	case raster.Float32, raster.Float64:
		return 3
	}
	return 1
}

// associatedPage stores an auxiliary image as a single Deflate strip.
func associatedPage(a Associated) (*tiff.Page, error) {
	block, err := a.Scene.ReadBlock(slide.BlockRequest{})
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", a.Name, err)
	}
	data, err := tiff.EncodeTile(block, tiff.CompressionDeflate, 0)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", a.Name, err)
	}
	return &tiff.Page{
		Width:           block.Width,
		Height:          block.Height,
		TileHeight:      block.Height,
		SamplesPerPixel: block.Channels,
		BitsPerSample:   block.Type.Size() * 8,
		SampleFormat:    sampleFormat(block.Type),
		Compression:     tiff.CompressionDeflate,
		Photometric:     tiff.PhotometricFor(block.Channels, tiff.CompressionDeflate),
		Description:     fmt.Sprintf("Aperio Image Library v12.0.0 (slide-tools-mcp)\r\n%s %dx%d", a.Name, block.Width, block.Height),
		Tiles:           [][]byte{data},
	}, nil
}
