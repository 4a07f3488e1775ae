package zarr

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Metadata keys of a version 2 hierarchy.
const (
	keyArray = ".zarray"
	keyGroup = ".zgroup"
	keyAttrs = ".zattrs"
)

// ArrayMeta is the content of a .zarray document.
type ArrayMeta struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	Dtype              string            `json:"dtype"`
	Compressor         *CompressionMeta  `json:"compressor"`
	FillValue          interface{}       `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

func (m *ArrayMeta) validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("zarr_format %d is not supported", m.ZarrFormat)
	}
	if len(m.Shape) < 2 || len(m.Shape) > 5 {
		return fmt.Errorf("arrays must have 2 to 5 dimensions, got %d", len(m.Shape))
	}
	if len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("chunks %v do not match shape %v", m.Chunks, m.Shape)
	}
	for i := range m.Shape {
		if m.Shape[i] <= 0 || m.Chunks[i] <= 0 {
			return fmt.Errorf("invalid shape %v or chunks %v", m.Shape, m.Chunks)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("order %q is not supported", m.Order)
	}
	if len(m.Filters) > 0 {
		return fmt.Errorf("filters are not supported")
	}
	if m.Compressor != nil && !supportedCompressor(m.Compressor.ID) {
		return fmt.Errorf("compressor %q is not supported", m.Compressor.ID)
	}
	return nil
}

// fillValue decodes the fill_value field. Null means zero.
func (m *ArrayMeta) fillValue() float64 {
	switch v := m.FillValue.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
	case string:
		switch v {
		case "NaN":
			return math.NaN()
		case "Infinity":
			return math.Inf(1)
		case "-Infinity":
			return math.Inf(-1)
		}
	}
	return 0
}

// Axis is one named dimension of a multiscale image. Older documents list
// axes as bare names.
type Axis struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

func (a *Axis) UnmarshalJSON(d []byte) error {
	var name string
	if err := json.Unmarshal(d, &name); err == nil {
		*a = Axis{Name: name}
		return nil
	}
	type plain Axis
	var p plain
	if err := json.Unmarshal(d, &p); err != nil {
		return err
	}
	*a = Axis(p)
	return nil
}

// Transform is a coordinate transformation of a dataset.
type Transform struct {
	Type  string    `json:"type"`
	Scale []float64 `json:"scale,omitempty"`
}

// Dataset is one resolution level of a multiscale image.
type Dataset struct {
	Path                      string      `json:"path"`
	CoordinateTransformations []Transform `json:"coordinateTransformations,omitempty"`
}

func (d Dataset) scale() []float64 {
	for _, t := range d.CoordinateTransformations {
		if t.Type == "scale" {
			return t.Scale
		}
	}
	return nil
}

// Multiscale describes an image pyramid stored in a group.
type Multiscale struct {
	Name     string    `json:"name,omitempty"`
	Version  string    `json:"version,omitempty"`
	Axes     []Axis    `json:"axes,omitempty"`
	Datasets []Dataset `json:"datasets"`
}

// OmeroChannel carries display information for one channel.
type OmeroChannel struct {
	Label string `json:"label"`
}

// Attributes is the subset of .zattrs understood by the driver.
type Attributes struct {
	Multiscales []Multiscale `json:"multiscales,omitempty"`
	Omero       *struct {
		Channels []OmeroChannel `json:"channels"`
	} `json:"omero,omitempty"`
}

// defaultAxes names the dimensions of arrays that carry no axis metadata.
func defaultAxes(ndim int) string {
	switch ndim {
	case 2:
		return "yx"
	case 3:
		return "cyx"
	case 4:
		return "czyx"
	}
	return "tczyx"
}

var axisNames = map[string]byte{
	"t": 't', "time": 't',
	"c": 'c', "channel": 'c',
	"z": 'z',
	"y": 'y',
	"x": 'x',
}

// axisLetters converts named axes to the one-letter form used internally.
func axisLetters(axes []Axis, ndim int) (string, error) {
	if len(axes) == 0 {
		return defaultAxes(ndim), nil
	}
	if len(axes) != ndim {
		return "", fmt.Errorf("%d axes for %d dimensions", len(axes), ndim)
	}
	var b strings.Builder
	seen := map[byte]bool{}
	for _, a := range axes {
		l, ok := axisNames[strings.ToLower(a.Name)]
		if !ok {
			return "", fmt.Errorf("unsupported axis %q", a.Name)
		}
		if seen[l] {
			return "", fmt.Errorf("duplicate axis %q", a.Name)
		}
		seen[l] = true
		b.WriteByte(l)
	}
	s := b.String()
	if !seen['x'] || !seen['y'] {
		return "", fmt.Errorf("axes %q lack x or y", s)
	}
	return s, nil
}

// unitMeters converts a space unit to meters. Unknown units yield 0.
func unitMeters(unit string) float64 {
	switch strings.ToLower(unit) {
	case "meter", "m":
		return 1
	case "millimeter", "mm":
		return 1e-3
	case "micrometer", "micron", "um", "µm":
		return 1e-6
	case "nanometer", "nm":
		return 1e-9
	}
	return 0
}

// unitSeconds converts a time unit to seconds. Unknown units yield 0.
func unitSeconds(unit string) float64 {
	switch strings.ToLower(unit) {
	case "second", "s":
		return 1
	case "millisecond", "ms":
		return 1e-3
	case "minute", "min":
		return 60
	case "hour", "h":
		return 3600
	}
	return 0
}
