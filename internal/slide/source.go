package slide

import (
	"fmt"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// Source is what a driver implements for each scene it exposes. The engine
// in Scene does all request validation, level selection, tile composition
// and resampling on top of it.
type Source interface {
	// Info describes the scene at full resolution.
	Info() SceneInfo

	// Levels lists the pyramid from full resolution (index 0) to coarsest.
	// There is always at least one level.
	Levels() []Level

	// ReadTile decodes one tile of one Z/T plane with every channel of the
	// scene. A nil raster with a nil error marks a tile that is absent from
	// the file; it is rendered as background.
	ReadTile(level, index, z, t int) (*raster.Raster, error)
}

// MetadataSource is implemented by sources that carry metadata of their own,
// such as the description of a TIFF directory.
type MetadataSource interface {
	RawMetadata() string
}

// RasterSource serves a scene held entirely in memory as a single-level,
// single-tile pyramid.
type RasterSource struct {
	info SceneInfo
	img  *raster.Raster
}

// NewRasterSource wraps img. Geometry, channel and plane counts of info are
// taken from img; the remaining fields are kept as given.
func NewRasterSource(info SceneInfo, img *raster.Raster) *RasterSource {
	info.Rect.Width = img.Width
	info.Rect.Height = img.Height
	info.NumZSlices = img.Slices
	info.NumTFrames = img.Frames
	channels := make([]ChannelInfo, img.Channels)
	for i := range channels {
		if i < len(info.Channels) {
			channels[i].Name = info.Channels[i].Name
		}
		channels[i].Type = img.Type
	}
	info.Channels = channels
	return &RasterSource{info: info, img: img}
}

func (s *RasterSource) Info() SceneInfo { return s.info }

func (s *RasterSource) Levels() []Level {
	return []Level{{
		Width:      s.img.Width,
		Height:     s.img.Height,
		TileWidth:  s.img.Width,
		TileHeight: s.img.Height,
		Scale:      1,
	}}
}

func (s *RasterSource) ReadTile(level, index, z, t int) (*raster.Raster, error) {
	if level != 0 || index != 0 {
		return nil, fmt.Errorf("%w: tile %d of level %d", ErrIndexOutOfRange, index, level)
	}
	return s.img.Plane(z, t), nil
}
