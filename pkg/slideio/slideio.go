// Package slideio is the importable entry point to the slide engine. It opens
// whole-slide and scientific images through the built-in drivers and exposes
// scenes, region reads and raster comparison.
//
// Usage:
//
//	s, err := slideio.OpenSlide("/data/biopsy.svs", "AUTO")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	scene, err := s.Scene(0)
//	if err != nil {
//		return err
//	}
//	block, err := scene.ReadBlock(slideio.BlockRequest{
//		Rect: slideio.Rect{X: 1000, Y: 1000, Width: 4096, Height: 4096},
//		Size: slideio.Size{Width: 512},
//	})
package slideio

import (
	"log/slog"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/drivers"
	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// AutoDriver asks OpenSlide to pick the driver by probing the file.
const AutoDriver = slide.AutoDriver

type (
	Slide        = slide.Slide
	Scene        = slide.Scene
	SceneInfo    = slide.SceneInfo
	ChannelInfo  = slide.ChannelInfo
	Level        = slide.Level
	Resolution   = slide.Resolution
	BlockRequest = slide.BlockRequest
	Rect         = slide.Rect
	Size         = slide.Size
	Range        = slide.Range
	Compression  = slide.Compression
	Raster       = raster.Raster
	DataType     = raster.DataType
	Similarity   = raster.Similarity
)

var (
	ErrOpen            = slide.ErrOpen
	ErrUnknownDriver   = slide.ErrUnknownDriver
	ErrInvalidRegion   = slide.ErrInvalidRegion
	ErrInvalidChannel  = slide.ErrInvalidChannel
	ErrInvalidRange    = slide.ErrInvalidRange
	ErrIndexOutOfRange = slide.ErrIndexOutOfRange
	ErrNameNotFound    = slide.ErrNameNotFound
	ErrDecode          = slide.ErrDecode
	ErrStaleHandle     = slide.ErrStaleHandle
	ErrShapeMismatch   = raster.ErrShapeMismatch
)

var (
	registryOnce sync.Once
	registry     *slide.Registry
)

func defaultRegistry() *slide.Registry {
	registryOnce.Do(func() {
		registry = drivers.Default(slog.Default())
	})
	return registry
}

// DriverIDs lists the registered driver IDs in sorted order.
func DriverIDs() []string {
	return defaultRegistry().IDs()
}

// OpenSlide opens path with the driver named by driverID, or with the first
// driver that recognizes the file when driverID is AutoDriver or empty.
func OpenSlide(path, driverID string) (*Slide, error) {
	if driverID == "" {
		driverID = AutoDriver
	}
	return defaultRegistry().Open(path, driverID)
}

// CompareImages scores the similarity of two rasters of identical shape in
// [0,1]. Identical rasters score 1.
func CompareImages(a, b *Raster) (float64, error) {
	return raster.Compare(a, b)
}

// CompareImagesDetailed is CompareImages plus the mean squared difference and,
// for 8-bit color rasters, the mean CIEDE2000 distance.
func CompareImagesDetailed(a, b *Raster) (*Similarity, error) {
	return raster.CompareDetailed(a, b)
}
