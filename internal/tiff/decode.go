package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/mrjoshuak/go-jpeg2000"
	"golang.org/x/image/tiff/lzw"
)

var (
	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
	zstdDecoderErr  error
)

func zstdDecode(src []byte) ([]byte, error) {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, zstdDecoderErr = zstd.NewReader(nil)
	})
	if zstdDecoderErr != nil {
		return nil, zstdDecoderErr
	}
	return zstdDecoder.DecodeAll(src, nil)
}

// RawTile returns the stored bytes of tile index. A zero byte count yields
// nil: the tile was never written.
func (f *File) RawTile(d *Dir, index int) ([]byte, error) {
	if index < 0 || index >= len(d.Offsets) {
		return nil, fmt.Errorf("%w: tile %d of %d", ErrFormat, index, len(d.Offsets))
	}
	n := d.ByteCounts[index]
	if n == 0 {
		return nil, nil
	}
	if n > 1<<30 {
		return nil, fmt.Errorf("%w: tile %d claims %d bytes", ErrFormat, index, n)
	}
	buf := make([]byte, n)
	got, err := f.r.ReadAt(buf, int64(d.Offsets[index]))
	if got < len(buf) {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("%w: tile %d: read %d of %d bytes", ErrFormat, index, got, len(buf))
		}
		return nil, fmt.Errorf("read tile %d: %w", index, err)
	}
	return buf, nil
}

// ReadTile decodes tile (or strip) index of d into a raster of
// TileWidth x rows samples, where rows is TileHeight except for a short last
// strip. Absent tiles return nil, nil.
func (f *File) ReadTile(d *Dir, index int) (*raster.Raster, error) {
	if d.PlanarConfig != 1 {
		return nil, fmt.Errorf("%w: planar configuration %d", ErrUnsupported, d.PlanarConfig)
	}
	raw, err := f.RawTile(d, index)
	if err != nil || raw == nil {
		return nil, err
	}

	rows := d.TileHeight
	if !d.Tiled {
		if rem := d.Height - (index/d.TilesAcross())*d.TileHeight; rem < rows {
			rows = rem
		}
	}

	switch d.Compression {
	case CompressionJPEG:
		return f.decodeJPEG(d, raw)
	case CompressionJ2KYCbCr, CompressionJ2KRGB, CompressionJP2000:
		return decodeJ2K(d, raw)
	}

	var data []byte
	switch d.Compression {
	case CompressionNone:
		data = raw
	case CompressionLZW:
		rc := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		data, err = io.ReadAll(rc)
		rc.Close()
	case CompressionDeflate, CompressionPKZIP:
		var zr io.ReadCloser
		zr, err = zlib.NewReader(bytes.NewReader(raw))
		if err == nil {
			data, err = io.ReadAll(zr)
			zr.Close()
		}
	case CompressionPackBits:
		data, err = unpackBits(raw)
	case CompressionZstd:
		data, err = zstdDecode(raw)
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupported, d.Compression)
	}
	if err != nil {
		return nil, fmt.Errorf("decompress tile %d: %w", index, err)
	}
	return f.samplesToRaster(d, data, d.TileWidth, rows)
}

// samplesToRaster converts decompressed interleaved samples into a raster,
// undoing the predictor and the file byte order.
func (f *File) samplesToRaster(d *Dir, data []byte, width, rows int) (*raster.Raster, error) {
	dt := d.DataType()
	r, err := raster.New(width, rows, d.SamplesPerPixel, dt)
	if err != nil {
		return nil, fmt.Errorf("%w: %d-bit samples (format %d)", ErrUnsupported, d.BitsPerSample, d.SampleFormat)
	}
	if len(data) < len(r.Pix) {
		return nil, fmt.Errorf("%w: tile holds %d bytes, need %d", ErrFormat, len(data), len(r.Pix))
	}
	data = data[:len(r.Pix)]

	size := dt.Size()
	if d.Predictor == predictorHorizontal {
		if err := undoHorizontalPredictor(data, f.order, width, rows, d.SamplesPerPixel, size); err != nil {
			return nil, err
		}
	} else if d.Predictor != predictorNone {
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupported, d.Predictor)
	}

	if size == 1 || f.order == binary.LittleEndian {
		copy(r.Pix, data)
		return r, nil
	}
	for i := 0; i < len(data); i += size {
		for b := 0; b < size; b++ {
			r.Pix[i+b] = data[i+size-1-b]
		}
	}
	return r, nil
}

func undoHorizontalPredictor(data []byte, order binary.ByteOrder, width, rows, spp, size int) error {
	rowLen := width * spp * size
	for y := 0; y < rows; y++ {
		row := data[y*rowLen : (y+1)*rowLen]
		switch size {
		case 1:
			for i := spp; i < len(row); i++ {
				row[i] += row[i-spp]
			}
		case 2:
			for i := spp * 2; i < len(row); i += 2 {
				v := order.Uint16(row[i:]) + order.Uint16(row[i-spp*2:])
				order.PutUint16(row[i:], v)
			}
		case 4:
			for i := spp * 4; i < len(row); i += 4 {
				v := order.Uint32(row[i:]) + order.Uint32(row[i-spp*4:])
				order.PutUint32(row[i:], v)
			}
		default:
			return fmt.Errorf("%w: predictor with %d-byte samples", ErrUnsupported, size)
		}
	}
	return nil
}

// decodeJPEG decodes an abbreviated JPEG tile, splicing in the shared tables
// from the directory when present.
func (f *File) decodeJPEG(d *Dir, raw []byte) (*raster.Raster, error) {
	stream := raw
	if len(d.JPEGTables) > 4 && len(raw) > 2 {
		tables := d.JPEGTables[:len(d.JPEGTables)-2] // drop EOI
		stream = make([]byte, 0, len(tables)+len(raw)-2)
		stream = append(stream, tables...)
		stream = append(stream, raw[2:]...) // drop SOI
	}
	img, err := jpeg.Decode(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("jpeg tile: %w", err)
	}

	// A stream stored as RGB but decoded with the YCbCr default keeps its
	// components untouched in the Y/Cb/Cr planes.
	if ycc, ok := img.(*image.YCbCr); ok && d.Photometric == PhotometricRGB && ycc.SubsampleRatio == image.YCbCrSubsampleRatio444 {
		return planesAsRGB(ycc), nil
	}
	return fitChannels(raster.FromImage(img), d.SamplesPerPixel)
}

func planesAsRGB(ycc *image.YCbCr) *raster.Raster {
	b := ycc.Bounds()
	r, _ := raster.New(b.Dx(), b.Dy(), 3, raster.Byte)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			yi := ycc.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := ycc.COffset(b.Min.X+x, b.Min.Y+y)
			i := (y*b.Dx() + x) * 3
			r.Pix[i] = ycc.Y[yi]
			r.Pix[i+1] = ycc.Cb[ci]
			r.Pix[i+2] = ycc.Cr[ci]
		}
	}
	return r
}

// decodeJ2K decodes a JPEG 2000 codestream tile. Aperio's 33003 variant
// stores YCbCr components without a color transform marker.
func decodeJ2K(d *Dir, raw []byte) (*raster.Raster, error) {
	img, err := jpeg2000.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("jpeg 2000 tile: %w", err)
	}
	r, err := fitChannels(raster.FromImage(img), d.SamplesPerPixel)
	if err != nil {
		return nil, err
	}
	if d.Compression == CompressionJ2KYCbCr && r.Channels == 3 && r.Type == raster.Byte {
		for i := 0; i < len(r.Pix); i += 3 {
			cr, cg, cb := color.YCbCrToRGB(r.Pix[i], r.Pix[i+1], r.Pix[i+2])
			r.Pix[i], r.Pix[i+1], r.Pix[i+2] = cr, cg, cb
		}
	}
	return r, nil
}

// fitChannels drops the synthetic alpha a codec may add so the raster matches
// the directory's samples per pixel.
func fitChannels(r *raster.Raster, spp int) (*raster.Raster, error) {
	switch {
	case r.Channels == spp:
		return r, nil
	case r.Channels > spp:
		idx := make([]int, spp)
		for i := range idx {
			idx[i] = i
		}
		return r.SelectChannels(idx)
	}
	return nil, fmt.Errorf("%w: decoded %d channels, directory declares %d", ErrFormat, r.Channels, spp)
}

// unpackBits decodes Macintosh PackBits run-length data.
func unpackBits(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(src) {
				return nil, fmt.Errorf("%w: packbits literal overruns input", ErrFormat)
			}
			out = append(out, src[i:i+n+1]...)
			i += n + 1
		case n != -128:
			if i >= len(src) {
				return nil, fmt.Errorf("%w: packbits run overruns input", ErrFormat)
			}
			for k := 0; k < 1-n; k++ {
				out = append(out, src[i])
			}
			i++
		}
	}
	return out, nil
}
