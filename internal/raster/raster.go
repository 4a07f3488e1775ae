package raster

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
)

// Raster is a dense block of samples laid out as
// [frame][slice][row][column][channel]. Samples are stored little-endian
// in Pix, Type.Size() bytes each.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Slices   int // Z
	Frames   int // T
	Type     DataType
	Pix      []byte
}

// New allocates a zeroed single-plane raster.
func New(width, height, channels int, dt DataType) (*Raster, error) {
	return NewStack(width, height, channels, 1, 1, dt)
}

// NewStack allocates a zeroed raster holding slices*frames planes.
func NewStack(width, height, channels, slices, frames int, dt DataType) (*Raster, error) {
	if !dt.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
	}
	if width < 0 || height < 0 || channels < 1 || slices < 1 || frames < 1 {
		return nil, fmt.Errorf("invalid raster shape %dx%dx%d (z=%d t=%d)", width, height, channels, slices, frames)
	}
	r := &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Slices:   slices,
		Frames:   frames,
		Type:     dt,
	}
	r.Pix = make([]byte, r.PlaneBytes()*slices*frames)
	return r, nil
}

// Bounds returns the plane rectangle anchored at the origin.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// PixelBytes is the byte length of one pixel (all channels).
func (r *Raster) PixelBytes() int { return r.Channels * r.Type.Size() }

// RowBytes is the byte stride between rows.
func (r *Raster) RowBytes() int { return r.Width * r.PixelBytes() }

// PlaneBytes is the byte length of one Z/T plane.
func (r *Raster) PlaneBytes() int { return r.Height * r.RowBytes() }

// NumPlanes returns Slices*Frames.
func (r *Raster) NumPlanes() int { return r.Slices * r.Frames }

func (r *Raster) planeOffset(z, t int) int {
	return (t*r.Slices + z) * r.PlaneBytes()
}

func (r *Raster) offset(x, y, c, z, t int) int {
	return r.planeOffset(z, t) + y*r.RowBytes() + x*r.PixelBytes() + c*r.Type.Size()
}

// Plane returns a single-plane view sharing storage with r.
func (r *Raster) Plane(z, t int) *Raster {
	off := r.planeOffset(z, t)
	return &Raster{
		Width:    r.Width,
		Height:   r.Height,
		Channels: r.Channels,
		Slices:   1,
		Frames:   1,
		Type:     r.Type,
		Pix:      r.Pix[off : off+r.PlaneBytes()],
	}
}

// At reads a sample from the first plane.
func (r *Raster) At(x, y, c int) float64 {
	return r.AtPlane(x, y, c, 0, 0)
}

// Set writes a sample to the first plane.
func (r *Raster) Set(x, y, c int, v float64) {
	r.SetPlane(x, y, c, 0, 0, v)
}

// AtPlane reads the sample at column x, row y, channel c of plane (z, t).
func (r *Raster) AtPlane(x, y, c, z, t int) float64 {
	return r.sample(r.offset(x, y, c, z, t))
}

// SetPlane writes v, rounding and saturating to the integer range when the
// raster holds integer samples.
func (r *Raster) SetPlane(x, y, c, z, t int, v float64) {
	r.setSample(r.offset(x, y, c, z, t), v)
}

func (r *Raster) sample(off int) float64 {
	p := r.Pix[off:]
	switch r.Type {
	case Byte:
		return float64(p[0])
	case Int8:
		return float64(int8(p[0]))
	case Uint16:
		return float64(binary.LittleEndian.Uint16(p))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(p)))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(p)))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(p))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	}
	return 0
}

func (r *Raster) setSample(off int, v float64) {
	p := r.Pix[off:]
	if !r.Type.IsFloat() {
		v = saturate(v, r.Type)
	}
	switch r.Type {
	case Byte:
		p[0] = uint8(v)
	case Int8:
		p[0] = uint8(int8(v))
	case Uint16:
		binary.LittleEndian.PutUint16(p, uint16(v))
	case Int16:
		binary.LittleEndian.PutUint16(p, uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(p, uint32(int32(v)))
	case Uint32:
		binary.LittleEndian.PutUint32(p, uint32(v))
	case Float32:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	}
}

func saturate(v float64, dt DataType) float64 {
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := dt.Limits()
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SameShape reports whether both rasters agree in every dimension and type.
func (r *Raster) SameShape(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height && r.Channels == o.Channels &&
		r.Slices == o.Slices && r.Frames == o.Frames && r.Type == o.Type
}

// Equal reports whether both rasters have the same shape and identical samples.
func (r *Raster) Equal(o *Raster) bool {
	if !r.SameShape(o) || len(r.Pix) != len(o.Pix) {
		return false
	}
	for i := range r.Pix {
		if r.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	c := *r
	c.Pix = append([]byte(nil), r.Pix...)
	return &c
}

// Crop copies the rectangle rect (clipped to the raster) out of every plane.
func (r *Raster) Crop(rect image.Rectangle) (*Raster, error) {
	rect = rect.Intersect(r.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop %v outside raster %dx%d", rect, r.Width, r.Height)
	}
	out, err := NewStack(rect.Dx(), rect.Dy(), r.Channels, r.Slices, r.Frames, r.Type)
	if err != nil {
		return nil, err
	}
	rowLen := out.RowBytes()
	for t := 0; t < r.Frames; t++ {
		for z := 0; z < r.Slices; z++ {
			for y := 0; y < rect.Dy(); y++ {
				src := r.offset(rect.Min.X, rect.Min.Y+y, 0, z, t)
				dst := out.offset(0, y, 0, z, t)
				copy(out.Pix[dst:dst+rowLen], r.Pix[src:src+rowLen])
			}
		}
	}
	return out, nil
}

// Paste copies the first plane of src into plane (z, t) of r with its top-left
// corner at (x, y). Parts of src falling outside r are dropped. Both rasters
// must share channel count and type.
func (r *Raster) Paste(src *Raster, x, y, z, t int) error {
	if src.Channels != r.Channels || src.Type != r.Type {
		return fmt.Errorf("%w: paste %d-channel %s into %d-channel %s",
			ErrShapeMismatch, src.Channels, src.Type, r.Channels, r.Type)
	}
	dstRect := image.Rect(x, y, x+src.Width, y+src.Height).Intersect(r.Bounds())
	if dstRect.Empty() {
		return nil
	}
	rowLen := dstRect.Dx() * r.PixelBytes()
	for row := dstRect.Min.Y; row < dstRect.Max.Y; row++ {
		s := src.offset(dstRect.Min.X-x, row-y, 0, 0, 0)
		d := r.offset(dstRect.Min.X, row, 0, z, t)
		copy(r.Pix[d:d+rowLen], src.Pix[s:s+rowLen])
	}
	return nil
}

// SelectChannels builds a raster whose channel i is channel indices[i] of r.
// Indices may repeat and appear in any order.
func (r *Raster) SelectChannels(indices []int) (*Raster, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("no channels selected")
	}
	for _, c := range indices {
		if c < 0 || c >= r.Channels {
			return nil, fmt.Errorf("channel %d out of range [0,%d)", c, r.Channels)
		}
	}
	out, err := NewStack(r.Width, r.Height, len(indices), r.Slices, r.Frames, r.Type)
	if err != nil {
		return nil, err
	}
	size := r.Type.Size()
	srcPix, dstPix := r.PixelBytes(), out.PixelBytes()
	n := r.Width * r.Height * r.Slices * r.Frames
	for p := 0; p < n; p++ {
		s := p * srcPix
		d := p * dstPix
		for i, c := range indices {
			copy(out.Pix[d+i*size:d+(i+1)*size], r.Pix[s+c*size:s+(c+1)*size])
		}
	}
	return out, nil
}

// MinMax returns the smallest and largest sample across all planes.
func (r *Raster) MinMax() (lo, hi float64) {
	n := len(r.Pix) / r.Type.Size()
	if n == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		v := r.sample(i * r.Type.Size())
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Samples returns every sample as float64 in storage order.
func (r *Raster) Samples() []float64 {
	size := r.Type.Size()
	out := make([]float64, len(r.Pix)/size)
	for i := range out {
		out[i] = r.sample(i * size)
	}
	return out
}
