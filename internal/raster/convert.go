package raster

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

type opaquer interface {
	Opaque() bool
}

// FromImage converts a decoded image into a single-plane raster. Grayscale
// images become one channel, opaque color images three and translucent ones
// four. 16-bit images keep their depth as Uint16.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	opaque := false
	if o, ok := img.(opaquer); ok {
		opaque = o.Opaque()
	}

	switch src := img.(type) {
	case *image.Gray:
		r, _ := New(w, h, 1, Byte)
		for y := 0; y < h; y++ {
			copy(r.Pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return r
	case *image.Gray16:
		r, _ := New(w, h, 1, Uint16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*src.Stride + x*2
				binary.LittleEndian.PutUint16(r.Pix[(y*w+x)*2:], uint16(src.Pix[i])<<8|uint16(src.Pix[i+1]))
			}
		}
		return r
	case *image.RGBA64, *image.NRGBA64:
		channels := 4
		if opaque {
			channels = 3
		}
		r, _ := New(w, h, channels, Uint16)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				vals := [4]uint16{c.R, c.G, c.B, c.A}
				for ch := 0; ch < channels; ch++ {
					binary.LittleEndian.PutUint16(r.Pix[((y*w+x)*channels+ch)*2:], vals[ch])
				}
			}
		}
		return r
	}

	channels := 4
	if opaque {
		channels = 3
	}
	r, _ := New(w, h, channels, Byte)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := (y*w + x) * channels
			r.Pix[i] = c.R
			r.Pix[i+1] = c.G
			r.Pix[i+2] = c.B
			if channels == 4 {
				r.Pix[i+3] = c.A
			}
		}
	}
	return r
}

// ToImage renders the first plane of an 8- or 16-bit raster with 1, 3 or 4
// channels as a standard library image.
func (r *Raster) ToImage() (image.Image, error) {
	if r.Channels != 1 && r.Channels != 3 && r.Channels != 4 {
		return nil, fmt.Errorf("cannot render %d channels as an image", r.Channels)
	}
	rect := r.Bounds()
	switch r.Type {
	case Byte:
		switch r.Channels {
		case 1:
			img := image.NewGray(rect)
			copy(img.Pix, r.Pix[:r.PlaneBytes()])
			return img, nil
		case 3:
			img := image.NewRGBA(rect)
			for i, j := 0, 0; i < r.Width*r.Height; i, j = i+1, j+3 {
				img.Pix[i*4] = r.Pix[j]
				img.Pix[i*4+1] = r.Pix[j+1]
				img.Pix[i*4+2] = r.Pix[j+2]
				img.Pix[i*4+3] = 0xff
			}
			return img, nil
		default:
			img := image.NewNRGBA(rect)
			copy(img.Pix, r.Pix[:r.PlaneBytes()])
			return img, nil
		}
	case Uint16:
		if r.Channels == 1 {
			img := image.NewGray16(rect)
			for i := 0; i < r.Width*r.Height; i++ {
				v := binary.LittleEndian.Uint16(r.Pix[i*2:])
				img.Pix[i*2] = uint8(v >> 8)
				img.Pix[i*2+1] = uint8(v)
			}
			return img, nil
		}
		img := image.NewNRGBA64(rect)
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				c := color.NRGBA64{A: 0xffff}
				c.R = uint16(r.At(x, y, 0))
				c.G = uint16(r.At(x, y, 1))
				c.B = uint16(r.At(x, y, 2))
				if r.Channels == 4 {
					c.A = uint16(r.At(x, y, 3))
				}
				img.SetNRGBA64(x, y, c)
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: cannot render %s samples", ErrUnsupportedType, r.Type)
}

// To8Bit linearly stretches the sample range of r onto [0,255]. Byte rasters
// are returned unchanged.
func (r *Raster) To8Bit() *Raster {
	if r.Type == Byte {
		return r
	}
	out, _ := NewStack(r.Width, r.Height, r.Channels, r.Slices, r.Frames, Byte)
	lo, hi := r.MinMax()
	span := hi - lo
	size := r.Type.Size()
	for i := range out.Pix {
		v := r.sample(i * size)
		if span > 0 {
			v = (v - lo) * 255 / span
		} else {
			v = 0
		}
		out.Pix[i] = uint8(saturate(v, Byte))
	}
	return out
}
