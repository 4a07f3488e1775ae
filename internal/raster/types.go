package raster

import (
	"errors"
	"fmt"
)

// DataType identifies the numeric type of one sample. The integer values are
// stable and are shared with every on-disk and wire representation.
type DataType int

const (
	Byte    DataType = 0
	Int8    DataType = 1
	Uint16  DataType = 2
	Int16   DataType = 3
	Int32   DataType = 4
	Float32 DataType = 5
	Float64 DataType = 6
	Float16 DataType = 7
	Uint32  DataType = 8
	Int64   DataType = 9
	Uint64  DataType = 10

	UnknownType DataType = 1024
	NoType      DataType = 2048
)

var (
	// ErrUnsupportedType is returned for data types that are declared but
	// cannot back a Raster.
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrShapeMismatch is returned when two rasters must agree in shape and do not.
	ErrShapeMismatch = errors.New("raster shapes differ")
)

var dataTypeNames = map[DataType]string{
	Byte:        "uint8",
	Int8:        "int8",
	Uint16:      "uint16",
	Int16:       "int16",
	Int32:       "int32",
	Float32:     "float32",
	Float64:     "float64",
	Float16:     "float16",
	Uint32:      "uint32",
	Int64:       "int64",
	Uint64:      "uint64",
	UnknownType: "unknown",
	NoType:      "none",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, error) {
	for dt, name := range dataTypeNames {
		if name == s {
			return dt, nil
		}
	}
	return UnknownType, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// Size returns the number of bytes of one sample, or 0 for types that have no
// storage representation.
func (d DataType) Size() int {
	switch d {
	case Byte, Int8:
		return 1
	case Uint16, Int16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	}
	return 0
}

// IsFloat reports whether samples are floating point.
func (d DataType) IsFloat() bool {
	return d == Float16 || d == Float32 || d == Float64
}

// Supported reports whether a Raster can be allocated with this type.
func (d DataType) Supported() bool {
	switch d {
	case Byte, Int8, Uint16, Int16, Int32, Uint32, Float32, Float64:
		return true
	}
	return false
}

// Limits returns the representable range used when saturating writes.
// Floating point types report the range of float32/float64 magnitudes.
func (d DataType) Limits() (lo, hi float64) {
	switch d {
	case Byte:
		return 0, 255
	case Int8:
		return -128, 127
	case Uint16:
		return 0, 65535
	case Int16:
		return -32768, 32767
	case Int32:
		return -2147483648, 2147483647
	case Uint32:
		return 0, 4294967295
	case Float32:
		return -3.4028234663852886e38, 3.4028234663852886e38
	}
	return -1.7976931348623157e308, 1.7976931348623157e308
}
