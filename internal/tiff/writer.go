package tiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/mrjoshuak/go-jpeg2000"
)

// Page describes one directory to be written. Tiles holds the already
// encoded tile (or strip) payloads in row-major order; a nil entry is written
// as an absent tile.
type Page struct {
	Width           int
	Height          int
	Tiled           bool
	TileWidth       int // ignored for strip pages
	TileHeight      int // rows per strip for strip pages
	SamplesPerPixel int
	BitsPerSample   int
	SampleFormat    int
	Compression     int
	Photometric     int
	SubfileType     int
	Description     string
	Tiles           [][]byte
	JPEGTables      []byte
}

func (p *Page) grid() (across, down int) {
	tw := p.TileWidth
	if !p.Tiled {
		tw = p.Width
	}
	return (p.Width + tw - 1) / tw, (p.Height + p.TileHeight - 1) / p.TileHeight
}

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortField(tag uint16, vals ...int) field {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return field{tag: tag, typ: dtShort, count: uint32(len(vals)), data: b}
}

func longField(tag uint16, vals ...uint64) field {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return field{tag: tag, typ: dtLong, count: uint32(len(vals)), data: b}
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Encode writes pages as a little-endian classic TIFF. The first page is the
// one readers treat as the main image.
func Encode(w io.Writer, pages []*Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("tiff: no pages to encode")
	}
	buf := new(bytes.Buffer)
	buf.WriteString(leHeader)
	buf.Write([]byte{0, 0, 0, 0})
	nextPos := 4

	for i, p := range pages {
		if p.Width <= 0 || p.Height <= 0 || p.TileHeight <= 0 || (p.Tiled && p.TileWidth <= 0) {
			return fmt.Errorf("tiff: page %d has invalid geometry", i)
		}
		across, down := p.grid()
		if len(p.Tiles) != across*down {
			return fmt.Errorf("tiff: page %d has %d tiles, needs %d", i, len(p.Tiles), across*down)
		}

		offsets := make([]uint64, len(p.Tiles))
		counts := make([]uint64, len(p.Tiles))
		for t, data := range p.Tiles {
			if len(data) == 0 {
				continue
			}
			offsets[t] = uint64(buf.Len())
			counts[t] = uint64(len(data))
			buf.Write(data)
		}
		if buf.Len()%2 == 1 {
			buf.WriteByte(0)
		}

		fields := []field{
			longField(tNewSubfileType, uint64(p.SubfileType)),
			longField(tImageWidth, uint64(p.Width)),
			longField(tImageLength, uint64(p.Height)),
			shortField(tBitsPerSample, repeat(p.BitsPerSample, p.SamplesPerPixel)...),
			shortField(tCompression, p.Compression),
			shortField(tPhotometric, p.Photometric),
			shortField(tSamplesPerPixel, p.SamplesPerPixel),
			shortField(tPlanarConfig, 1),
			shortField(tSampleFormat, repeat(p.SampleFormat, p.SamplesPerPixel)...),
		}
		if p.Description != "" {
			desc := append([]byte(p.Description), 0)
			fields = append(fields, field{tag: tImageDescription, typ: dtASCII, count: uint32(len(desc)), data: desc})
		}
		if p.Tiled {
			fields = append(fields,
				longField(tTileWidth, uint64(p.TileWidth)),
				longField(tTileLength, uint64(p.TileHeight)),
				longField(tTileOffsets, offsets...),
				longField(tTileByteCounts, counts...),
			)
		} else {
			fields = append(fields,
				longField(tStripOffsets, offsets...),
				longField(tRowsPerStrip, uint64(p.TileHeight)),
				longField(tStripByteCounts, counts...),
			)
		}
		if len(p.JPEGTables) > 0 {
			fields = append(fields, field{tag: tJPEGTables, typ: dtUndefined, count: uint32(len(p.JPEGTables)), data: p.JPEGTables})
		}
		sort.Slice(fields, func(a, b int) bool { return fields[a].tag < fields[b].tag })

		ifdPos := buf.Len()
		binary.LittleEndian.PutUint32(buf.Bytes()[nextPos:], uint32(ifdPos))
		extraPos := ifdPos + 2 + 12*len(fields) + 4
		var extra bytes.Buffer

		var head [12]byte
		binary.LittleEndian.PutUint16(head[:2], uint16(len(fields)))
		buf.Write(head[:2])
		for _, f := range fields {
			binary.LittleEndian.PutUint16(head[0:], f.tag)
			binary.LittleEndian.PutUint16(head[2:], f.typ)
			binary.LittleEndian.PutUint32(head[4:], f.count)
			clear(head[8:])
			if len(f.data) <= 4 {
				copy(head[8:], f.data)
			} else {
				binary.LittleEndian.PutUint32(head[8:], uint32(extraPos+extra.Len()))
				extra.Write(f.data)
				if extra.Len()%2 == 1 {
					extra.WriteByte(0)
				}
			}
			buf.Write(head[:])
		}
		nextPos = buf.Len()
		buf.Write([]byte{0, 0, 0, 0})
		buf.Write(extra.Bytes())

		if buf.Len() > math.MaxUint32 {
			return fmt.Errorf("tiff: output exceeds 4 GiB, which classic TIFF cannot address")
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

var (
	zstdEncoderOnce sync.Once
	zstdEncoder     *zstd.Encoder
	zstdEncoderErr  error
)

// EncodeTile compresses a single-plane raster into a tile payload for the
// given compression tag. quality applies to JPEG and JPEG 2000; a JPEG 2000
// quality of 100 or more selects the reversible transform.
func EncodeTile(r *raster.Raster, compression, quality int) ([]byte, error) {
	if r.NumPlanes() != 1 {
		return nil, fmt.Errorf("tiff: tile must be a single plane, got %d", r.NumPlanes())
	}
	var buf bytes.Buffer
	switch compression {
	case CompressionNone:
		return append([]byte(nil), r.Pix...), nil
	case CompressionDeflate:
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(r.Pix); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case CompressionZstd:
		zstdEncoderOnce.Do(func() {
			zstdEncoder, zstdEncoderErr = zstd.NewWriter(nil)
		})
		if zstdEncoderErr != nil {
			return nil, zstdEncoderErr
		}
		return zstdEncoder.EncodeAll(r.Pix, nil), nil
	case CompressionJPEG:
		if r.Type != raster.Byte || (r.Channels != 1 && r.Channels != 3) {
			return nil, fmt.Errorf("%w: jpeg needs 1 or 3 channels of uint8, got %d of %s", ErrUnsupported, r.Channels, r.Type)
		}
		img, err := r.ToImage()
		if err != nil {
			return nil, err
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
			return nil, err
		}
	case CompressionJ2KRGB, CompressionJP2000:
		img, err := r.ToImage()
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg 2000 tile: %v", ErrUnsupported, err)
		}
		opts := jpeg2000.DefaultOptions()
		opts.Format = jpeg2000.FormatJ2K
		opts.Quality = clampQuality(quality)
		opts.Lossless = quality >= 100
		opts.NumResolutions = j2kResolutions(r.Width, r.Height)
		if err := jpeg2000.Encode(&buf, img, opts); err != nil {
			return nil, fmt.Errorf("jpeg 2000 tile: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode compression %d", ErrUnsupported, compression)
	}
	return buf.Bytes(), nil
}

// PhotometricFor returns the photometric interpretation matching tiles
// produced by EncodeTile.
func PhotometricFor(channels, compression int) int {
	switch {
	case channels < 3:
		return PhotometricMinIsBlack
	case compression == CompressionJPEG:
		return PhotometricYCbCr
	}
	return PhotometricRGB
}

func clampQuality(q int) int {
	switch {
	case q < 1:
		return 75
	case q > 100:
		return 100
	}
	return q
}

// j2kResolutions keeps the coarsest wavelet level at least 8 pixels wide.
func j2kResolutions(w, h int) int {
	n := 1
	for m := min(w, h); m >= 16 && n < 6; m /= 2 {
		n++
	}
	return n
}
