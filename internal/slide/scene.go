package slide

import (
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// Scene is one continuous raster region of a slide, possibly with several
// channels, focal slices and time frames. Auxiliary images are Scenes too.
type Scene struct {
	slide *Slide
	src   Source
}

// Info returns the scene description, or ErrStaleHandle once the slide is
// closed.
func (s *Scene) Info() (SceneInfo, error) {
	if err := s.slide.acquire(); err != nil {
		return SceneInfo{}, err
	}
	defer s.slide.release()
	return s.info(), nil
}

func (s *Scene) info() SceneInfo {
	info := s.src.Info()
	if info.NumZSlices < 1 {
		info.NumZSlices = 1
	}
	if info.NumTFrames < 1 {
		info.NumTFrames = 1
	}
	if info.FilePath == "" {
		info.FilePath = s.slide.path
	}
	return info
}

// Valid reports whether the slide the scene belongs to is still open.
func (s *Scene) Valid() bool {
	if err := s.slide.acquire(); err != nil {
		return false
	}
	s.slide.release()
	return true
}

// The attribute accessors below read Info and return zero values once the
// slide is closed. Use Info or Valid where a closed slide must be told apart.

// Name returns the scene name.
func (s *Scene) Name() string { return s.snapshot().Name }

// FilePath returns the file the scene is read from.
func (s *Scene) FilePath() string { return s.snapshot().FilePath }

// Rect returns the scene extent at full resolution.
func (s *Scene) Rect() Rect { return s.snapshot().Rect }

// NumChannels returns the number of channels.
func (s *Scene) NumChannels() int { return len(s.snapshot().Channels) }

// NumZSlices returns the number of focal slices, at least 1 while open.
func (s *Scene) NumZSlices() int { return s.snapshot().NumZSlices }

// NumTFrames returns the number of time frames, at least 1 while open.
func (s *Scene) NumTFrames() int { return s.snapshot().NumTFrames }

// Resolution returns the pixel size in meters, zero when unknown.
func (s *Scene) Resolution() Resolution { return s.snapshot().Resolution }

// ZResolution returns the slice spacing in meters.
func (s *Scene) ZResolution() float64 { return s.snapshot().ZResolution }

// TResolution returns the frame interval in seconds.
func (s *Scene) TResolution() float64 { return s.snapshot().TResolution }

// Magnification returns the scan objective power, zero when unknown.
func (s *Scene) Magnification() float64 { return s.snapshot().Magnification }

// Compression returns the storage compression of the full resolution level.
func (s *Scene) Compression() Compression { return s.snapshot().Compression }

func (s *Scene) snapshot() SceneInfo {
	info, _ := s.Info()
	return info
}

// Levels returns a copy of the pyramid, full resolution first.
func (s *Scene) Levels() ([]Level, error) {
	if err := s.slide.acquire(); err != nil {
		return nil, err
	}
	defer s.slide.release()
	return append([]Level(nil), s.src.Levels()...), nil
}

// RawMetadata returns the scene's own format-specific metadata when the
// driver keeps any, otherwise the slide's.
func (s *Scene) RawMetadata() (string, error) {
	if err := s.slide.acquire(); err != nil {
		return "", err
	}
	defer s.slide.release()
	if m, ok := s.src.(MetadataSource); ok {
		if text := m.RawMetadata(); text != "" {
			return text, nil
		}
	}
	return s.slide.metadata, nil
}

// ChannelDataType returns the sample type of channel c.
func (s *Scene) ChannelDataType(c int) (raster.DataType, error) {
	ch, err := s.channels()
	if err != nil {
		return raster.UnknownType, err
	}
	if c < 0 || c >= len(ch) {
		return raster.UnknownType, fmt.Errorf("%w: %d of %d", ErrInvalidChannel, c, len(ch))
	}
	return ch[c].Type, nil
}

// ChannelName returns the optional name of channel c.
func (s *Scene) ChannelName(c int) (string, error) {
	ch, err := s.channels()
	if err != nil {
		return "", err
	}
	if c < 0 || c >= len(ch) {
		return "", fmt.Errorf("%w: %d of %d", ErrInvalidChannel, c, len(ch))
	}
	return ch[c].Name, nil
}

func (s *Scene) channels() ([]ChannelInfo, error) {
	if err := s.slide.acquire(); err != nil {
		return nil, err
	}
	defer s.slide.release()
	return s.src.Info().Channels, nil
}

// blockPlan is a fully resolved and validated BlockRequest.
type blockPlan struct {
	rect     image.Rectangle
	size     Size
	channels []int
	z, t     Range
	dtype    raster.DataType
}

// ReadBlock extracts a region of the scene, optionally resampled, for the
// requested channels, slices and frames. The result has one plane per
// (frame, slice) pair in [T][Z] order.
func (s *Scene) ReadBlock(req BlockRequest) (*raster.Raster, error) {
	if err := s.slide.acquire(); err != nil {
		return nil, err
	}
	defer s.slide.release()

	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	levels := s.src.Levels()
	zoom := math.Max(
		float64(plan.size.Width)/float64(plan.rect.Dx()),
		float64(plan.size.Height)/float64(plan.rect.Dy()),
	)
	li := selectLevel(levels, zoom)
	levelRect := scaleRect(plan.rect, levels[0], levels[li])

	s.slide.opts.logger.Debug("read block",
		"scene", s.src.Info().Name,
		"rect", plan.rect,
		"size", fmt.Sprintf("%dx%d", plan.size.Width, plan.size.Height),
		"level", li,
		"level_rect", levelRect,
	)

	block, err := s.compose(plan, li, levels[li], levelRect)
	if err != nil {
		return nil, err
	}
	if block.Width == plan.size.Width && block.Height == plan.size.Height {
		return block, nil
	}
	return raster.Resize(block, plan.size.Width, plan.size.Height)
}

// plan applies defaults, clamps the region to the scene and validates every
// index in req.
func (s *Scene) plan(req BlockRequest) (*blockPlan, error) {
	info := s.info()
	sw, sh := info.Rect.Width, info.Rect.Height

	r := req.Rect
	if r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidRegion, r)
	}
	if r.Width == 0 {
		r.Width = sw - r.X
	}
	if r.Height == 0 {
		r.Height = sh - r.Y
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: %+v does not overlap scene %dx%d", ErrInvalidRegion, req.Rect, sw, sh)
	}
	want := r.Image()
	rect := want.Intersect(image.Rect(0, 0, sw, sh))
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %+v does not overlap scene %dx%d", ErrInvalidRegion, req.Rect, sw, sh)
	}

	size := req.Size
	if size.Width < 0 || size.Height < 0 {
		return nil, fmt.Errorf("%w: negative output size %dx%d", ErrInvalidRegion, size.Width, size.Height)
	}
	if rect != want && (size.Width > 0 || size.Height > 0) {
		// Keep the requested scale for the part of the region that survived.
		size.Width = int(math.Round(float64(size.Width) * float64(rect.Dx()) / float64(want.Dx())))
		size.Height = int(math.Round(float64(size.Height) * float64(rect.Dy()) / float64(want.Dy())))
		if req.Size.Width > 0 && size.Width == 0 {
			size.Width = 1
		}
		if req.Size.Height > 0 && size.Height == 0 {
			size.Height = 1
		}
	}
	switch {
	case size.Width == 0 && size.Height == 0:
		size = Size{Width: rect.Dx(), Height: rect.Dy()}
	case size.Width == 0:
		size.Width = max(1, int(math.Round(float64(size.Height)*float64(rect.Dx())/float64(rect.Dy()))))
	case size.Height == 0:
		size.Height = max(1, int(math.Round(float64(size.Width)*float64(rect.Dy())/float64(rect.Dx()))))
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = make([]int, len(info.Channels))
		for i := range channels {
			channels[i] = i
		}
	}
	var dtype raster.DataType
	for i, c := range channels {
		if c < 0 || c >= len(info.Channels) {
			return nil, fmt.Errorf("%w: %d (scene has %d channels)", ErrInvalidChannel, c, len(info.Channels))
		}
		if i == 0 {
			dtype = info.Channels[c].Type
		} else if info.Channels[c].Type != dtype {
			return nil, fmt.Errorf("%w: channels %d and %d differ in data type", ErrInvalidChannel, channels[0], c)
		}
	}

	z, err := resolveRange(req.ZRange, info.NumZSlices, "slice")
	if err != nil {
		return nil, err
	}
	t, err := resolveRange(req.TRange, info.NumTFrames, "frame")
	if err != nil {
		return nil, err
	}

	return &blockPlan{rect: rect, size: size, channels: channels, z: z, t: t, dtype: dtype}, nil
}

func resolveRange(r Range, n int, what string) (Range, error) {
	if r == (Range{}) {
		r = Range{First: 0, Last: 1}
	}
	if r.First < 0 || r.First >= r.Last || r.Last > n {
		return r, fmt.Errorf("%w: %s range [%d,%d) with %d available", ErrInvalidRange, what, r.First, r.Last, n)
	}
	return r, nil
}
