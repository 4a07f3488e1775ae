// Package zarr opens version 2 zarr hierarchies stored as directories.
//
// A directory holding a single array becomes a one-scene slide with a single
// pyramid level. A group whose attributes carry OME-NGFF "multiscales"
// becomes one scene per multiscale entry, its datasets forming the pyramid.
// A plain group exposes each child array or multiscale group as a scene.
// Dimensions are mapped onto channels, Z slices and T frames through the
// declared axes, or by rank (yx, cyx, czyx, tczyx) when none are declared.
package zarr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// ID is the registry identifier of the driver.
const ID = "ZARR"

// Driver implements slide.Driver for zarr directories.
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

// Probe accepts directories holding a .zarray or .zgroup document.
func (d *Driver) Probe(p string) bool {
	for _, key := range []string{keyArray, keyGroup} {
		if st, err := os.Stat(filepath.Join(p, key)); err == nil && !st.IsDir() {
			return true
		}
	}
	return false
}

// Open reads the hierarchy metadata. Chunks are read on demand.
func (d *Driver) Open(p string) (*slide.Contents, error) {
	store, err := NewLocalStore(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", slide.ErrOpen, err)
	}
	name := filepath.Base(filepath.Clean(p))
	scenes, metadata, err := d.scenes(store, "", name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", slide.ErrOpen, p, err)
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: %s holds no images", slide.ErrOpen, p)
	}
	d.logger.Debug("zarr hierarchy opened", "path", p, "scenes", len(scenes))
	return &slide.Contents{Scenes: scenes, Metadata: metadata}, nil
}

// scenes builds the sources found at key and returns the raw metadata text
// of that node.
func (d *Driver) scenes(store Store, key, name string) ([]slide.Source, string, error) {
	if raw, err := readKey(store, joinKey(key, keyArray)); err == nil {
		a, err := openArray(store, key)
		if err != nil {
			return nil, "", err
		}
		src, err := newArraySource(store, name, []*array{a}, defaultAxes(len(a.meta.Shape)))
		if err != nil {
			return nil, "", err
		}
		return []slide.Source{src}, string(raw), nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	if _, err := readKey(store, joinKey(key, keyGroup)); err != nil {
		return nil, "", err
	}
	var attrs Attributes
	rawAttrs, err := readKey(store, joinKey(key, keyAttrs))
	switch {
	case err == nil:
		if err := json.Unmarshal(rawAttrs, &attrs); err != nil {
			return nil, "", fmt.Errorf("%s: %w", joinKey(key, keyAttrs), err)
		}
	case !errors.Is(err, ErrNotFound):
		return nil, "", err
	}

	if len(attrs.Multiscales) > 0 {
		var out []slide.Source
		for i, ms := range attrs.Multiscales {
			msName := ms.Name
			if msName == "" {
				msName = name
				if len(attrs.Multiscales) > 1 {
					msName = fmt.Sprintf("%s/%d", name, i)
				}
			}
			src, err := d.multiscale(store, key, msName, ms, &attrs)
			if err != nil {
				return nil, "", err
			}
			out = append(out, src)
		}
		return out, string(rawAttrs), nil
	}

	children, err := store.List(key)
	if err != nil {
		return nil, "", err
	}
	var out []slide.Source
	for _, child := range children {
		if child[0] == '.' {
			continue
		}
		sub, _, err := d.scenes(store, joinKey(key, child), child)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		out = append(out, sub...)
	}
	return out, string(rawAttrs), nil
}

func (d *Driver) multiscale(store Store, key, name string, ms Multiscale, attrs *Attributes) (*arraySource, error) {
	if len(ms.Datasets) == 0 {
		return nil, fmt.Errorf("multiscale %q has no datasets", name)
	}
	var arrays []*array
	for _, ds := range ms.Datasets {
		a, err := openArray(store, joinKey(key, path.Clean(ds.Path)))
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, a)
	}
	axes, err := axisLetters(ms.Axes, len(arrays[0].meta.Shape))
	if err != nil {
		return nil, fmt.Errorf("multiscale %q: %w", name, err)
	}
	src, err := newArraySource(store, name, arrays, axes)
	if err != nil {
		return nil, fmt.Errorf("multiscale %q: %w", name, err)
	}

	if scale := ms.Datasets[0].scale(); len(scale) == len(axes) && len(ms.Axes) == len(axes) {
		physical := func(axis byte, unit func(string) float64) float64 {
			i := src.dim(axis)
			if i < 0 {
				return 0
			}
			return scale[i] * unit(ms.Axes[i].Unit)
		}
		src.info.Resolution = slide.Resolution{X: physical('x', unitMeters), Y: physical('y', unitMeters)}
		src.info.ZResolution = physical('z', unitMeters)
		src.info.TResolution = physical('t', unitSeconds)
	}
	if attrs.Omero != nil {
		for i := range src.info.Channels {
			if i < len(attrs.Omero.Channels) {
				src.info.Channels[i].Name = attrs.Omero.Channels[i].Label
			}
		}
	}
	return src, nil
}
