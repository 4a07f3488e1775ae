// Package gdal opens ordinary single-image raster files (PNG, JPEG, GIF, BMP,
// TIFF, WebP and JPEG 2000) as one-scene slides.
//
// GDAL is the conventional identifier of the generic raster driver in slide
// readers. No GDAL library is involved.
package gdal

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mrjoshuak/go-jpeg2000"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// ID is the registry identifier of the driver.
const ID = "GDAL"

// Driver implements slide.Driver for the image formats registered with the
// standard image package.
type Driver struct {
	logger *slog.Logger
}

// NewDriver returns a driver logging to logger, or to slog.Default when
// logger is nil.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger}
}

func (d *Driver) ID() string { return ID }

// Probe accepts any file whose header one of the registered decoders
// recognizes.
func (d *Driver) Probe(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, _, err = image.DecodeConfig(f)
	return err == nil
}

// metadata is the JSON document reported as the slide's raw metadata.
type metadata struct {
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	DataType string `json:"data_type"`
}

// Open decodes the whole image into memory.
func (d *Driver) Open(path string) (*slide.Contents, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", slide.ErrOpen, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", slide.ErrOpen, filepath.Base(path), err)
	}
	r := raster.FromImage(img)

	src := slide.NewRasterSource(slide.SceneInfo{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Compression: compressionOf(format),
	}, r)

	meta, err := json.Marshal(metadata{
		Format:   format,
		Width:    r.Width,
		Height:   r.Height,
		Channels: r.Channels,
		DataType: r.Type.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", slide.ErrOpen, err)
	}

	d.logger.Debug("image decoded", "path", path, "format", format, "width", r.Width, "height", r.Height, "channels", r.Channels)
	return &slide.Contents{
		Scenes:   []slide.Source{src},
		Metadata: string(meta),
	}, nil
}

func compressionOf(format string) slide.Compression {
	switch format {
	case "png":
		return slide.Png
	case "jpeg":
		return slide.Jpeg
	case "gif":
		return slide.GIF
	case "bmp":
		return slide.BMP
	case "jp2", "j2k":
		return slide.Jpeg2000
	}
	return slide.CompressionUnknown
}
