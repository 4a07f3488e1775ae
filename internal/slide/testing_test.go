package slide

import (
	"errors"
	"image"
	"math"
	"sync/atomic"
	"testing"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// pyramidSource is an in-memory tiled pyramid used to exercise the engine.
type pyramidSource struct {
	info    SceneInfo
	levels  []Level
	planes  [][]*raster.Raster // [level][plane]
	missing map[int]bool       // tile indices of level 0 absent from the "file"
	broken  map[int]bool       // tile indices of level 0 that fail to decode
	reads   atomic.Int64
}

// createPatternStack creates a multi-plane 8-bit raster with smooth content
// that differs per channel and per plane
func createPatternStack(t *testing.T, width, height, channels, slices, frames int) *raster.Raster {
	t.Helper()

	r, err := raster.NewStack(width, height, channels, slices, frames, raster.Byte)
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	for tt := 0; tt < frames; tt++ {
		for z := 0; z < slices; z++ {
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					for c := 0; c < channels; c++ {
						v := 128 + 90*math.Sin(float64(x)/13+float64(c))*math.Cos(float64(y)/19+float64(z)) + float64(tt*7)
						r.SetPlane(x, y, c, z, tt, v)
					}
				}
			}
		}
	}
	return r
}

func newPyramidSource(t *testing.T, img *raster.Raster, tile, numLevels int) *pyramidSource {
	t.Helper()

	src := &pyramidSource{
		info: SceneInfo{
			Name:        "pattern",
			Rect:        Rect{Width: img.Width, Height: img.Height},
			NumZSlices:  img.Slices,
			NumTFrames:  img.Frames,
			Compression: Uncompressed,
		},
		missing: map[int]bool{},
		broken:  map[int]bool{},
	}
	for c := 0; c < img.Channels; c++ {
		src.info.Channels = append(src.info.Channels, ChannelInfo{Type: img.Type})
	}

	cur := img
	for l := 0; l < numLevels; l++ {
		if l > 0 {
			next, err := raster.Resize(cur, (cur.Width+1)/2, (cur.Height+1)/2)
			if err != nil {
				t.Fatalf("Resize failed: %v", err)
			}
			cur = next
		}
		src.levels = append(src.levels, Level{
			Width:      cur.Width,
			Height:     cur.Height,
			TileWidth:  tile,
			TileHeight: tile,
			Scale:      float64(cur.Width) / float64(img.Width),
		})
		var planes []*raster.Raster
		for tt := 0; tt < cur.Frames; tt++ {
			for z := 0; z < cur.Slices; z++ {
				planes = append(planes, cur.Plane(z, tt))
			}
		}
		src.planes = append(src.planes, planes)
	}
	return src
}

func (s *pyramidSource) Info() SceneInfo { return s.info }

func (s *pyramidSource) Levels() []Level { return s.levels }

func (s *pyramidSource) ReadTile(level, index, z, t int) (*raster.Raster, error) {
	s.reads.Add(1)
	if level == 0 && s.missing[index] {
		return nil, nil
	}
	if level == 0 && s.broken[index] {
		return nil, errors.New("corrupt tile payload")
	}
	lvl := s.levels[level]
	plane := s.planes[level][t*s.info.NumZSlices+z]
	col := index % lvl.TilesAcross()
	row := index / lvl.TilesAcross()
	rect := image.Rect(col*lvl.TileWidth, row*lvl.TileHeight, (col+1)*lvl.TileWidth, (row+1)*lvl.TileHeight)

	// Edge tiles are padded to the full tile size like real tiled formats.
	tile, err := raster.New(lvl.TileWidth, lvl.TileHeight, plane.Channels, plane.Type)
	if err != nil {
		return nil, err
	}
	part, err := plane.Crop(rect)
	if err != nil {
		return nil, err
	}
	if err := tile.Paste(part, 0, 0, 0, 0); err != nil {
		return nil, err
	}
	return tile, nil
}

// fakeDriver opens any path whose name it was given.
type fakeDriver struct {
	id       string
	accepts  string
	contents func() *Contents
}

func (d *fakeDriver) ID() string { return d.id }

func (d *fakeDriver) Probe(path string) bool { return path == d.accepts }

func (d *fakeDriver) Open(path string) (*Contents, error) {
	if path != d.accepts {
		return nil, ErrOpen
	}
	return d.contents(), nil
}

// openTestSlide wraps sources into a slide without going through a registry
func openTestSlide(t *testing.T, sources ...Source) *Slide {
	t.Helper()

	s, err := New("memory", "TEST", &Contents{Scenes: sources}, WithWorkers(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
