package zarr

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// array is one opened zarr array: a single pyramid level.
type array struct {
	key   string
	meta  ArrayMeta
	dtype Dtype
	dt    raster.DataType
	fill  []byte // one little-endian sample
}

func openArray(s Store, key string) (*array, error) {
	raw, err := readKey(s, joinKey(key, keyArray))
	if err != nil {
		return nil, err
	}
	a := &array{key: key}
	if err := json.Unmarshal(raw, &a.meta); err != nil {
		return nil, fmt.Errorf("array %q: %w", key, err)
	}
	if err := a.meta.validate(); err != nil {
		return nil, fmt.Errorf("array %q: %w", key, err)
	}
	if a.dtype, err = ParseDtype(a.meta.Dtype); err != nil {
		return nil, fmt.Errorf("array %q: %w", key, err)
	}
	a.dt = a.dtype.DataType()
	if !a.dt.Supported() {
		return nil, fmt.Errorf("array %q: dtype %s is not supported", key, a.meta.Dtype)
	}
	one, _ := raster.New(1, 1, 1, a.dt)
	one.Set(0, 0, 0, a.meta.fillValue())
	a.fill = one.Pix
	return a, nil
}

// chunk returns the decompressed bytes of the chunk at coords, or nil when
// the chunk was never written.
func (a *array) chunk(s Store, coords []int) ([]byte, error) {
	sep := "."
	if a.meta.DimensionSeparator == "/" {
		sep = "/"
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.Itoa(c)
	}
	key := joinKey(a.key, strings.Join(parts, sep))

	raw, err := readKey(s, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := decompress(a.meta.Compressor, raw)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", key, err)
	}
	want := a.dtype.Size
	for _, c := range a.meta.Chunks {
		want *= c
	}
	if len(data) < want {
		return nil, fmt.Errorf("chunk %s: %d bytes, want %d", key, len(data), want)
	}
	return data, nil
}

// arraySource serves one multiscale image. axes holds one letter per array
// dimension, for example "tczyx".
type arraySource struct {
	store  Store
	arrays []*array
	axes   string
	info   slide.SceneInfo
	levels []slide.Level
}

func newArraySource(store Store, name string, arrays []*array, axes string) (*arraySource, error) {
	base := arrays[0]
	s := &arraySource{store: store, arrays: arrays, axes: axes}
	for i, a := range arrays {
		if len(a.meta.Shape) != len(axes) {
			return nil, fmt.Errorf("level %d has %d dimensions, want %d", i, len(a.meta.Shape), len(axes))
		}
		if a.dt != base.dt {
			return nil, fmt.Errorf("level %d has dtype %s, base has %s", i, a.meta.Dtype, base.meta.Dtype)
		}
		if s.extent(a, 'c') != s.extent(base, 'c') || s.extent(a, 'z') != s.extent(base, 'z') || s.extent(a, 't') != s.extent(base, 't') {
			return nil, fmt.Errorf("level %d changes the channel, slice or frame count", i)
		}
		s.levels = append(s.levels, slide.Level{
			Width:      s.extent(a, 'x'),
			Height:     s.extent(a, 'y'),
			TileWidth:  s.chunkExtent(a, 'x'),
			TileHeight: s.chunkExtent(a, 'y'),
			Scale:      float64(s.extent(a, 'x')) / float64(s.extent(base, 'x')),
		})
	}

	channels := make([]slide.ChannelInfo, s.extent(base, 'c'))
	for i := range channels {
		channels[i].Type = base.dt
	}
	s.info = slide.SceneInfo{
		Name:        name,
		Rect:        slide.Rect{Width: s.extent(base, 'x'), Height: s.extent(base, 'y')},
		Channels:    channels,
		NumZSlices:  s.extent(base, 'z'),
		NumTFrames:  s.extent(base, 't'),
		Compression: compressionOf(base.meta.Compressor),
	}
	return s, nil
}

func compressionOf(m *CompressionMeta) slide.Compression {
	if m == nil {
		return slide.Uncompressed
	}
	switch m.ID {
	case "zlib", "gzip":
		return slide.Zlib
	}
	return slide.CompressionUnknown
}

func (s *arraySource) dim(axis byte) int { return strings.IndexByte(s.axes, axis) }

func (s *arraySource) extent(a *array, axis byte) int {
	if i := s.dim(axis); i >= 0 {
		return a.meta.Shape[i]
	}
	return 1
}

func (s *arraySource) chunkExtent(a *array, axis byte) int {
	if i := s.dim(axis); i >= 0 {
		return a.meta.Chunks[i]
	}
	return 1
}

func (s *arraySource) Info() slide.SceneInfo { return s.info }

func (s *arraySource) Levels() []slide.Level { return s.levels }

// ReadTile assembles the x/y chunk at index for plane (z, t) from every
// chunk along the channel axis.
func (s *arraySource) ReadTile(level, index, z, t int) (*raster.Raster, error) {
	if level < 0 || level >= len(s.arrays) {
		return nil, fmt.Errorf("%w: level %d", slide.ErrIndexOutOfRange, level)
	}
	a := s.arrays[level]
	lvl := s.levels[level]
	numC := s.extent(a, 'c')
	tile, err := raster.New(lvl.TileWidth, lvl.TileHeight, numC, a.dt)
	if err != nil {
		return nil, err
	}

	ndim := len(s.axes)
	strides := make([]int, ndim)
	strides[ndim-1] = 1
	for i := ndim - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * a.meta.Chunks[i+1]
	}
	local := func(axis byte, v int) int {
		if i := s.dim(axis); i >= 0 {
			return (v % a.meta.Chunks[i]) * strides[i]
		}
		return 0
	}
	stride := func(axis byte) int {
		if i := s.dim(axis); i >= 0 {
			return strides[i]
		}
		return 0
	}

	chunkC := s.chunkExtent(a, 'c')
	coords := make([]int, ndim)
	for i, axis := range []byte(s.axes) {
		switch axis {
		case 'x':
			coords[i] = index % lvl.TilesAcross()
		case 'y':
			coords[i] = index / lvl.TilesAcross()
		case 'z':
			coords[i] = z / a.meta.Chunks[i]
		case 't':
			coords[i] = t / a.meta.Chunks[i]
		}
	}

	size := a.dtype.Size
	swap := size > 1 && a.dtype.Order == binary.BigEndian
	base := local('z', z) + local('t', t)
	sx, sy, sc := stride('x'), stride('y'), stride('c')

	for cc := 0; cc*chunkC < numC; cc++ {
		if i := s.dim('c'); i >= 0 {
			coords[i] = cc
		}
		data, err := a.chunk(s.store, coords)
		if err != nil {
			return nil, err
		}
		for lc := 0; lc < chunkC && cc*chunkC+lc < numC; lc++ {
			c := cc*chunkC + lc
			for y := 0; y < lvl.TileHeight; y++ {
				for x := 0; x < lvl.TileWidth; x++ {
					dst := ((y*lvl.TileWidth+x)*numC + c) * size
					if data == nil {
						copy(tile.Pix[dst:dst+size], a.fill)
						continue
					}
					src := (base + lc*sc + y*sy + x*sx) * size
					if !swap {
						copy(tile.Pix[dst:dst+size], data[src:src+size])
						continue
					}
					for b := 0; b < size; b++ {
						tile.Pix[dst+b] = data[src+size-1-b]
					}
				}
			}
		}
	}
	return tile, nil
}
