package svs

import (
	"fmt"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
	"github.com/ironsheep/slide-tools-mcp/internal/tiff"
)

// dirSource serves a scene backed by one or more TIFF directories. The first
// directory is the full resolution; the rest form the reduced pyramid.
type dirSource struct {
	file   *tiff.File
	dirs   []*tiff.Dir
	info   slide.SceneInfo
	levels []slide.Level
}

func newDirSource(file *tiff.File, name string, dirs []*tiff.Dir) (*dirSource, error) {
	base := dirs[0]
	dt := base.DataType()
	if !dt.Supported() {
		return nil, fmt.Errorf("%w: %s: %d-bit samples are not supported", slide.ErrOpen, name, base.BitsPerSample)
	}
	if base.PlanarConfig != 1 {
		return nil, fmt.Errorf("%w: %s: planar configuration %d is not supported", slide.ErrOpen, name, base.PlanarConfig)
	}

	channels := make([]slide.ChannelInfo, base.SamplesPerPixel)
	for i := range channels {
		channels[i].Type = dt
	}
	s := &dirSource{
		file: file,
		dirs: dirs,
		info: slide.SceneInfo{
			Name:          name,
			Rect:          slide.Rect{Width: base.Width, Height: base.Height},
			Channels:      channels,
			NumZSlices:    1,
			NumTFrames:    1,
			Magnification: parseMagnification(base.Description),
			Compression:   tiff.SlideCompression(base.Compression),
		},
	}
	for _, d := range dirs {
		s.levels = append(s.levels, slide.Level{
			Width:      d.Width,
			Height:     d.Height,
			TileWidth:  d.TileWidth,
			TileHeight: d.TileHeight,
			Scale:      float64(d.Width) / float64(base.Width),
		})
	}
	return s, nil
}

func (s *dirSource) Info() slide.SceneInfo { return s.info }

func (s *dirSource) Levels() []slide.Level { return s.levels }

func (s *dirSource) ReadTile(level, index, z, t int) (*raster.Raster, error) {
	if level < 0 || level >= len(s.dirs) {
		return nil, fmt.Errorf("%w: level %d", slide.ErrIndexOutOfRange, level)
	}
	return s.file.ReadTile(s.dirs[level], index)
}

// RawMetadata returns the image description of the full resolution
// directory.
func (s *dirSource) RawMetadata() string { return s.dirs[0].Description }
