// Package svs opens Aperio SVS whole-slide images.
//
// An SVS file is a TIFF whose first directory holds the full-resolution scan.
// It is followed by an optional strip-organized thumbnail, the tiled reduced
// resolutions, and strip-organized label and macro photographs recognized by
// their image descriptions.
package svs

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ironsheep/slide-tools-mcp/internal/slide"
	"github.com/ironsheep/slide-tools-mcp/internal/tiff"
)

// ID is the registry identifier of the driver.
const ID = "SVS"

// Scene and auxiliary image names.
const (
	ImageName     = "Image"
	ThumbnailName = "Thumbnail"
	LabelName     = "Label"
	MacroName     = "Macro"
)

const vendorMarker = "Aperio"

// Driver implements slide.Driver for SVS files.
type Driver struct {
	logger *slog.Logger
}

// NewDriver returns an SVS driver logging to logger, or to slog.Default when
// logger is nil.
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{logger: logger}
}

func (d *Driver) ID() string { return ID }

// Probe accepts TIFF files whose first image description carries the Aperio
// marker.
func (d *Driver) Probe(path string) bool {
	h, err := slide.OpenHandle(path)
	if err != nil {
		return false
	}
	defer h.Close()
	if !tiff.IsTIFF(h) {
		return false
	}
	f, err := tiff.Open(h)
	if err != nil {
		return false
	}
	return strings.Contains(f.Dirs[0].Description, vendorMarker)
}

// layout is the role of each directory in an SVS file.
type layout struct {
	image     []*tiff.Dir
	thumbnail *tiff.Dir
	label     *tiff.Dir
	macro     *tiff.Dir
}

func classify(dirs []*tiff.Dir) layout {
	l := layout{image: []*tiff.Dir{dirs[0]}}
	next := 1
	if next < len(dirs) && !dirs[next].Tiled {
		l.thumbnail = dirs[next]
		next++
	}
	for ; next < len(dirs) && dirs[next].Tiled; next++ {
		l.image = append(l.image, dirs[next])
	}
	for ; next < len(dirs); next++ {
		desc := strings.ToLower(dirs[next].Description)
		switch {
		case strings.Contains(desc, "label"):
			l.label = dirs[next]
		case strings.Contains(desc, "macro"):
			l.macro = dirs[next]
		}
	}
	return l
}

// Open parses path. The returned contents own the file handle.
func (d *Driver) Open(path string) (*slide.Contents, error) {
	h, err := slide.OpenHandle(path)
	if err != nil {
		return nil, err
	}
	contents, err := d.open(h)
	if err != nil {
		h.Close()
		return nil, err
	}
	return contents, nil
}

func (d *Driver) open(h *slide.Handle) (*slide.Contents, error) {
	f, err := tiff.Open(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", slide.ErrOpen, h.Path(), err)
	}
	base := f.Dirs[0]
	if !strings.Contains(base.Description, vendorMarker) {
		return nil, fmt.Errorf("%w: %s is not an Aperio SVS file", slide.ErrOpen, h.Path())
	}

	l := classify(f.Dirs)
	image, err := newDirSource(f, ImageName, l.image)
	if err != nil {
		return nil, err
	}
	mpp := parseResolution(base.Description)
	image.info.Resolution = slide.Resolution{X: mpp, Y: mpp}

	contents := &slide.Contents{
		Scenes:   []slide.Source{image},
		Metadata: base.Description,
		Closers:  []io.Closer{h},
	}
	for _, aux := range []struct {
		name string
		dir  *tiff.Dir
	}{
		{ThumbnailName, l.thumbnail},
		{LabelName, l.label},
		{MacroName, l.macro},
	} {
		if aux.dir == nil {
			continue
		}
		src, err := newDirSource(f, aux.name, []*tiff.Dir{aux.dir})
		if err != nil {
			return nil, err
		}
		contents.Scenes = append(contents.Scenes, src)
		contents.Aux = append(contents.Aux, slide.NamedSource{Name: aux.name, Source: src})
	}

	d.logger.Debug("svs layout",
		"path", h.Path(),
		"levels", len(l.image),
		"thumbnail", l.thumbnail != nil,
		"label", l.label != nil,
		"macro", l.macro != nil,
		"compression", image.info.Compression.String(),
	)
	return contents, nil
}
