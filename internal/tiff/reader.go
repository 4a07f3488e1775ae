package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

var (
	// ErrFormat reports a file that is not a well-formed TIFF.
	ErrFormat = errors.New("malformed tiff")

	// ErrUnsupported reports a valid TIFF feature this package does not decode.
	ErrUnsupported = errors.New("unsupported tiff feature")
)

// maxDirectories bounds the IFD chain to guard against offset loops.
const maxDirectories = 4096

// File is a parsed TIFF or BigTIFF container.
type File struct {
	r     io.ReaderAt
	order binary.ByteOrder
	big   bool
	Dirs  []*Dir
}

// Dir is one image file directory with the fields needed to decode it.
type Dir struct {
	Index           int
	Width           int
	Height          int
	Tiled           bool
	TileWidth       int // strip images report the image width
	TileHeight      int // strip images report RowsPerStrip
	SamplesPerPixel int
	BitsPerSample   int
	SampleFormat    int
	Compression     int
	Photometric     int
	PlanarConfig    int
	Predictor       int
	SubfileType     int
	Description     string
	Offsets         []uint64
	ByteCounts      []uint64
	JPEGTables      []byte
}

type entry struct {
	typ   uint16
	count uint64
	data  []byte
}

// Open reads the header and every IFD of r.
func Open(r io.ReaderAt) (*File, error) {
	hdr := make([]byte, 16)
	if _, err := r.ReadAt(hdr[:8], 0); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	f := &File{r: r}
	switch string(hdr[:4]) {
	case leHeader:
		f.order = binary.LittleEndian
	case beHeader:
		f.order = binary.BigEndian
	case leBigHeader:
		f.order, f.big = binary.LittleEndian, true
	case beBigHeader:
		f.order, f.big = binary.BigEndian, true
	default:
		return nil, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	var next uint64
	if f.big {
		if _, err := r.ReadAt(hdr[8:16], 8); err != nil {
			return nil, fmt.Errorf("%w: bigtiff header: %v", ErrFormat, err)
		}
		if f.order.Uint16(hdr[4:]) != 8 {
			return nil, fmt.Errorf("%w: bigtiff offset size %d", ErrFormat, f.order.Uint16(hdr[4:]))
		}
		next = f.order.Uint64(hdr[8:])
	} else {
		next = uint64(f.order.Uint32(hdr[4:]))
	}

	seen := make(map[uint64]bool)
	for next != 0 {
		if seen[next] || len(f.Dirs) >= maxDirectories {
			return nil, fmt.Errorf("%w: directory loop at offset %d", ErrFormat, next)
		}
		seen[next] = true
		entries, following, err := f.readIFD(next)
		if err != nil {
			return nil, err
		}
		d, err := f.parseDir(len(f.Dirs), entries)
		if err != nil {
			return nil, err
		}
		f.Dirs = append(f.Dirs, d)
		next = following
	}
	if len(f.Dirs) == 0 {
		return nil, fmt.Errorf("%w: no directories", ErrFormat)
	}
	return f, nil
}

// IsTIFF reports whether the first bytes of r carry a TIFF or BigTIFF magic.
func IsTIFF(r io.ReaderAt) bool {
	hdr := make([]byte, 4)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return false
	}
	switch string(hdr) {
	case leHeader, beHeader, leBigHeader, beBigHeader:
		return true
	}
	return false
}

func (f *File) readIFD(off uint64) (map[uint16]entry, uint64, error) {
	countLen, entryLen, valueLen := 2, 12, 4
	if f.big {
		countLen, entryLen, valueLen = 8, 20, 8
	}
	buf := make([]byte, countLen)
	if _, err := f.r.ReadAt(buf, int64(off)); err != nil {
		return nil, 0, fmt.Errorf("%w: ifd at %d: %v", ErrFormat, off, err)
	}
	var n uint64
	if f.big {
		n = f.order.Uint64(buf)
	} else {
		n = uint64(f.order.Uint16(buf))
	}
	if n > 1<<16 {
		return nil, 0, fmt.Errorf("%w: %d entries in ifd", ErrFormat, n)
	}

	body := make([]byte, int(n)*entryLen+valueLen)
	if _, err := f.r.ReadAt(body, int64(off)+int64(countLen)); err != nil {
		return nil, 0, fmt.Errorf("%w: ifd entries at %d: %v", ErrFormat, off, err)
	}

	entries := make(map[uint16]entry, n)
	for i := 0; i < int(n); i++ {
		e := body[i*entryLen : (i+1)*entryLen]
		tag := f.order.Uint16(e[0:])
		typ := f.order.Uint16(e[2:])
		var count uint64
		var value []byte
		if f.big {
			count = f.order.Uint64(e[4:])
			value = e[12:20]
		} else {
			count = uint64(f.order.Uint32(e[4:]))
			value = e[8:12]
		}
		size := typeSize(typ)
		if size == 0 {
			continue
		}
		total := uint64(size) * count
		if total > 1<<31 {
			return nil, 0, fmt.Errorf("%w: tag %d too large", ErrFormat, tag)
		}
		var data []byte
		if total <= uint64(valueLen) {
			data = append([]byte(nil), value[:total]...)
		} else {
			var ptr uint64
			if f.big {
				ptr = f.order.Uint64(value)
			} else {
				ptr = uint64(f.order.Uint32(value))
			}
			data = make([]byte, total)
			if _, err := f.r.ReadAt(data, int64(ptr)); err != nil {
				return nil, 0, fmt.Errorf("%w: tag %d data: %v", ErrFormat, tag, err)
			}
		}
		entries[tag] = entry{typ: typ, count: count, data: data}
	}

	tail := body[int(n)*entryLen:]
	var next uint64
	if f.big {
		next = f.order.Uint64(tail)
	} else {
		next = uint64(f.order.Uint32(tail))
	}
	return entries, next, nil
}

// uints decodes an integer-valued entry.
func (f *File) uints(e entry) []uint64 {
	size := typeSize(e.typ)
	out := make([]uint64, 0, e.count)
	for i := 0; i < int(e.count); i++ {
		p := e.data[i*size:]
		switch e.typ {
		case dtByte, dtUndefined, dtSByte:
			out = append(out, uint64(p[0]))
		case dtShort, dtSShort:
			out = append(out, uint64(f.order.Uint16(p)))
		case dtLong, dtSLong, dtIFD:
			out = append(out, uint64(f.order.Uint32(p)))
		case dtLong8, dtSLong8, dtIFD8:
			out = append(out, f.order.Uint64(p))
		case dtRational:
			den := f.order.Uint32(p[4:])
			if den == 0 {
				den = 1
			}
			out = append(out, uint64(f.order.Uint32(p)/den))
		case dtFloat:
			out = append(out, uint64(math.Float32frombits(f.order.Uint32(p))))
		case dtDouble:
			out = append(out, uint64(math.Float64frombits(f.order.Uint64(p))))
		}
	}
	return out
}

func (f *File) parseDir(index int, entries map[uint16]entry) (*Dir, error) {
	get := func(tag uint16, def int) int {
		e, ok := entries[tag]
		if !ok {
			return def
		}
		v := f.uints(e)
		if len(v) == 0 {
			return def
		}
		return int(v[0])
	}

	d := &Dir{
		Index:           index,
		Width:           get(tImageWidth, 0),
		Height:          get(tImageLength, 0),
		SamplesPerPixel: get(tSamplesPerPixel, 1),
		BitsPerSample:   get(tBitsPerSample, 1),
		SampleFormat:    get(tSampleFormat, sampleUint),
		Compression:     get(tCompression, CompressionNone),
		Photometric:     get(tPhotometric, PhotometricMinIsBlack),
		PlanarConfig:    get(tPlanarConfig, 1),
		Predictor:       get(tPredictor, predictorNone),
		SubfileType:     get(tNewSubfileType, 0),
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("%w: directory %d has no image size", ErrFormat, index)
	}
	if e, ok := entries[tImageDescription]; ok {
		d.Description = strings.TrimRight(string(e.data), "\x00")
	}
	if e, ok := entries[tJPEGTables]; ok {
		d.JPEGTables = e.data
	}

	offTag, countTag := uint16(tStripOffsets), uint16(tStripByteCounts)
	if _, ok := entries[tTileWidth]; ok {
		d.Tiled = true
		d.TileWidth = get(tTileWidth, 0)
		d.TileHeight = get(tTileLength, 0)
		offTag, countTag = tTileOffsets, tTileByteCounts
	} else {
		d.TileWidth = d.Width
		d.TileHeight = get(tRowsPerStrip, d.Height)
		if d.TileHeight <= 0 || d.TileHeight > d.Height {
			d.TileHeight = d.Height
		}
	}
	if d.TileWidth <= 0 || d.TileHeight <= 0 {
		return nil, fmt.Errorf("%w: directory %d has zero tile size", ErrFormat, index)
	}

	if e, ok := entries[offTag]; ok {
		d.Offsets = f.uints(e)
	}
	if e, ok := entries[countTag]; ok {
		d.ByteCounts = f.uints(e)
	}
	want := d.TilesAcross() * d.TilesDown()
	if d.PlanarConfig == 2 {
		want *= d.SamplesPerPixel
	}
	if len(d.Offsets) < want || len(d.ByteCounts) < want {
		return nil, fmt.Errorf("%w: directory %d lists %d tiles, needs %d", ErrFormat, index, len(d.Offsets), want)
	}
	return d, nil
}

// TilesAcross returns the number of tile columns.
func (d *Dir) TilesAcross() int { return (d.Width + d.TileWidth - 1) / d.TileWidth }

// TilesDown returns the number of tile rows.
func (d *Dir) TilesDown() int { return (d.Height + d.TileHeight - 1) / d.TileHeight }

// NumTiles returns TilesAcross*TilesDown.
func (d *Dir) NumTiles() int { return d.TilesAcross() * d.TilesDown() }

// DataType maps the sample layout to a raster type. Compressions that decode
// through an image codec always yield 8- or 16-bit samples.
func (d *Dir) DataType() raster.DataType {
	switch d.BitsPerSample {
	case 8:
		if d.SampleFormat == sampleInt {
			return raster.Int8
		}
		return raster.Byte
	case 16:
		switch d.SampleFormat {
		case sampleInt:
			return raster.Int16
		case sampleFloat:
			return raster.Float16
		}
		return raster.Uint16
	case 32:
		switch d.SampleFormat {
		case sampleInt:
			return raster.Int32
		case sampleFloat:
			return raster.Float32
		}
		return raster.Uint32
	case 64:
		if d.SampleFormat == sampleFloat {
			return raster.Float64
		}
		if d.SampleFormat == sampleInt {
			return raster.Int64
		}
		return raster.Uint64
	}
	return raster.UnknownType
}
