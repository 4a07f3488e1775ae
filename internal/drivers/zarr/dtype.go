package zarr

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// Dtype is a NumPy type string such as "<u2" or "|u1": byte order, kind and
// item size.
type Dtype struct {
	Order binary.ByteOrder
	Kind  byte
	Size  int
}

// ParseDtype parses a simple (non-structured) NumPy type string.
func ParseDtype(s string) (Dtype, error) {
	// Some writers HTML-escape the byte order marker.
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)
	if len(s) < 3 {
		return Dtype{}, fmt.Errorf("invalid dtype %q", s)
	}

	var dt Dtype
	switch s[0] {
	case '<', '|':
		dt.Order = binary.LittleEndian
	case '>':
		dt.Order = binary.BigEndian
	default:
		return Dtype{}, fmt.Errorf("invalid byte order in dtype %q", s)
	}
	dt.Kind = s[1]
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return Dtype{}, fmt.Errorf("invalid item size in dtype %q", s)
	}
	dt.Size = size
	return dt, nil
}

// DataType maps the dtype onto the engine's sample types. Types without an
// equivalent map to raster.UnknownType.
func (d Dtype) DataType() raster.DataType {
	switch d.Kind {
	case 'b':
		if d.Size == 1 {
			return raster.Byte
		}
	case 'u':
		switch d.Size {
		case 1:
			return raster.Byte
		case 2:
			return raster.Uint16
		case 4:
			return raster.Uint32
		case 8:
			return raster.Uint64
		}
	case 'i':
		switch d.Size {
		case 1:
			return raster.Int8
		case 2:
			return raster.Int16
		case 4:
			return raster.Int32
		case 8:
			return raster.Int64
		}
	case 'f':
		switch d.Size {
		case 2:
			return raster.Float16
		case 4:
			return raster.Float32
		case 8:
			return raster.Float64
		}
	}
	return raster.UnknownType
}
