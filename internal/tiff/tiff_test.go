package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"testing"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// createGradient returns a smooth raster that survives lossy codecs well.
func createGradient(t *testing.T, width, height, channels int) *raster.Raster {
	t.Helper()
	r, err := raster.New(width, height, channels, raster.Byte)
	if err != nil {
		t.Fatalf("raster.New: %v", err)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				r.Set(x, y, c, float64(x+2*y+40*c))
			}
		}
	}
	return r
}

// tiledPage splits img into tiles encoded with compression.
func tiledPage(t *testing.T, img *raster.Raster, tile, compression, quality int) *Page {
	t.Helper()
	p := &Page{
		Width:           img.Width,
		Height:          img.Height,
		Tiled:           true,
		TileWidth:       tile,
		TileHeight:      tile,
		SamplesPerPixel: img.Channels,
		BitsPerSample:   8,
		SampleFormat:    sampleUint,
		Compression:     compression,
		Photometric:     PhotometricFor(img.Channels, compression),
	}
	across, down := p.grid()
	for ty := 0; ty < down; ty++ {
		for tx := 0; tx < across; tx++ {
			buf, _ := raster.New(tile, tile, img.Channels, img.Type)
			part, err := img.Crop(buf.Bounds().Add(image.Pt(tx*tile, ty*tile)).Intersect(img.Bounds()))
			if err != nil {
				t.Fatalf("Crop: %v", err)
			}
			if err := buf.Paste(part, 0, 0, 0, 0); err != nil {
				t.Fatalf("Paste: %v", err)
			}
			data, err := EncodeTile(buf, compression, quality)
			if err != nil {
				t.Fatalf("EncodeTile(%d): %v", compression, err)
			}
			p.Tiles = append(p.Tiles, data)
		}
	}
	return p
}

func encodePages(t *testing.T, pages ...*Page) *File {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, pages); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

// readAll reassembles a directory from its tiles.
func readAll(t *testing.T, f *File, d *Dir) *raster.Raster {
	t.Helper()
	out, _ := raster.New(d.Width, d.Height, d.SamplesPerPixel, d.DataType())
	for i := 0; i < d.NumTiles(); i++ {
		tile, err := f.ReadTile(d, i)
		if err != nil {
			t.Fatalf("ReadTile(%d): %v", i, err)
		}
		if tile == nil {
			continue
		}
		x := (i % d.TilesAcross()) * d.TileWidth
		y := (i / d.TilesAcross()) * d.TileHeight
		if err := out.Paste(tile, x, y, 0, 0); err != nil {
			t.Fatalf("Paste: %v", err)
		}
	}
	return out
}

func TestRoundTrip_Codecs(t *testing.T) {
	img := createGradient(t, 70, 45, 3)

	tests := []struct {
		name        string
		compression int
		quality     int
		minScore    float64
		exact       bool
	}{
		{"none", CompressionNone, 0, 1, true},
		{"deflate", CompressionDeflate, 0, 1, true},
		{"zstd", CompressionZstd, 0, 1, true},
		{"jpeg", CompressionJPEG, 95, 0.97, false},
		{"jpeg2000 lossy", CompressionJ2KRGB, 90, 0.97, false},
		{"jpeg2000 lossless", CompressionJ2KRGB, 100, 0.99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := encodePages(t, tiledPage(t, img, 32, tt.compression, tt.quality))
			if len(f.Dirs) != 1 {
				t.Fatalf("got %d directories, want 1", len(f.Dirs))
			}
			d := f.Dirs[0]
			if !d.Tiled || d.TileWidth != 32 || d.NumTiles() != 6 || d.Compression != tt.compression {
				t.Fatalf("directory: %+v", d)
			}
			got := readAll(t, f, d)
			if tt.exact {
				if !got.Equal(img) {
					t.Error("lossless round trip changed pixels")
				}
				return
			}
			score, err := raster.Compare(got, img)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if score < tt.minScore {
				t.Errorf("similarity %.4f below %.2f", score, tt.minScore)
			}
		})
	}
}

func TestRoundTrip_StripsAndDescription(t *testing.T) {
	img := createGradient(t, 20, 11, 1)
	p := &Page{
		Width:           20,
		Height:          11,
		TileHeight:      4,
		SamplesPerPixel: 1,
		BitsPerSample:   8,
		SampleFormat:    sampleUint,
		Compression:     CompressionNone,
		Photometric:     PhotometricMinIsBlack,
		Description:     "Aperio Image Library|AppMag = 20",
		SubfileType:     SubfileReduced,
	}
	for y := 0; y < 11; y += 4 {
		strip, err := img.Crop(img.Bounds().Intersect(image.Rect(0, y, 20, y+4)))
		if err != nil {
			t.Fatal(err)
		}
		data, _ := EncodeTile(strip, CompressionNone, 0)
		p.Tiles = append(p.Tiles, data)
	}
	second := tiledPage(t, img, 16, CompressionDeflate, 0)

	f := encodePages(t, p, second)
	if len(f.Dirs) != 2 {
		t.Fatalf("got %d directories, want 2", len(f.Dirs))
	}
	d := f.Dirs[0]
	if d.Tiled || d.TileWidth != 20 || d.TileHeight != 4 || d.NumTiles() != 3 {
		t.Errorf("strip geometry: %+v", d)
	}
	if d.Description != p.Description || d.SubfileType != SubfileReduced {
		t.Errorf("description %q subfile %d", d.Description, d.SubfileType)
	}
	last, err := f.ReadTile(d, 2)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	if last.Height != 3 {
		t.Errorf("last strip rows: got %d, want 3", last.Height)
	}
	if !readAll(t, f, d).Equal(img) {
		t.Error("strip image differs")
	}
	if !readAll(t, f, f.Dirs[1]).Equal(img) {
		t.Error("second directory differs")
	}
}

func TestReadTile_Absent(t *testing.T) {
	img := createGradient(t, 32, 16, 1)
	p := tiledPage(t, img, 16, CompressionNone, 0)
	p.Tiles[1] = nil
	f := encodePages(t, p)
	tile, err := f.ReadTile(f.Dirs[0], 1)
	if err != nil || tile != nil {
		t.Errorf("absent tile: got %v, %v", tile, err)
	}
	if _, err := f.ReadTile(f.Dirs[0], 5); !errors.Is(err, ErrFormat) {
		t.Errorf("out of range tile: got %v", err)
	}
}

func TestReadTile_Sixteen(t *testing.T) {
	img, _ := raster.New(8, 8, 1, raster.Uint16)
	for i := 0; i < 64; i++ {
		img.Set(i%8, i/8, 0, float64(i*1000))
	}
	data, err := EncodeTile(img, CompressionZstd, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := encodePages(t, &Page{
		Width: 8, Height: 8, Tiled: true, TileWidth: 8, TileHeight: 8,
		SamplesPerPixel: 1, BitsPerSample: 16, SampleFormat: sampleUint,
		Compression: CompressionZstd, Photometric: PhotometricMinIsBlack,
		Tiles: [][]byte{data},
	})
	got, err := f.ReadTile(f.Dirs[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != raster.Uint16 || !got.Equal(img) {
		t.Errorf("16-bit tile differs: type %s", got.Type)
	}
}

func TestOpen_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte("GIF89a..")},
		{"dangling ifd", []byte("II\x2A\x00\xff\x00\x00\x00")},
		{"loop", append([]byte("II\x2A\x00\x08\x00\x00\x00"), 0, 0, 8, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(bytes.NewReader(tt.data)); !errors.Is(err, ErrFormat) {
				t.Errorf("got %v, want ErrFormat", err)
			}
		})
	}
	if IsTIFF(bytes.NewReader([]byte("II"))) {
		t.Error("IsTIFF accepted a truncated header")
	}
	if !IsTIFF(bytes.NewReader([]byte("MM\x00\x2B\x00\x08\x00\x00"))) {
		t.Error("IsTIFF rejected a BigTIFF header")
	}
}

// TestOpen_BigEndianStrip decodes a hand-assembled big-endian file with a
// 16-bit strip and the horizontal predictor.
func TestOpen_BigEndianStrip(t *testing.T) {
	be := binary.BigEndian
	var b bytes.Buffer
	b.WriteString(beHeader)
	binary.Write(&b, be, uint32(8))

	type ent struct {
		tag, typ uint16
		val      uint32
	}
	ents := []ent{
		{tImageWidth, dtShort, 3},
		{tImageLength, dtShort, 1},
		{tBitsPerSample, dtShort, 16},
		{tCompression, dtShort, CompressionNone},
		{tPhotometric, dtShort, PhotometricMinIsBlack},
		{tStripOffsets, dtLong, 0}, // patched below
		{tSamplesPerPixel, dtShort, 1},
		{tRowsPerStrip, dtShort, 1},
		{tStripByteCounts, dtLong, 6},
		{tPredictor, dtShort, predictorHorizontal},
	}
	dataOff := uint32(8 + 2 + 12*len(ents) + 4)
	binary.Write(&b, be, uint16(len(ents)))
	for _, e := range ents {
		if e.tag == tStripOffsets {
			e.val = dataOff
		}
		binary.Write(&b, be, e.tag)
		binary.Write(&b, be, e.typ)
		binary.Write(&b, be, uint32(1))
		if e.typ == dtShort {
			binary.Write(&b, be, uint16(e.val))
			binary.Write(&b, be, uint16(0))
		} else {
			binary.Write(&b, be, e.val)
		}
	}
	binary.Write(&b, be, uint32(0))
	// Samples 1000, 1500, 1200 stored as differences.
	binary.Write(&b, be, []uint16{1000, 500, 0xffff - 299})

	f, err := Open(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tile, err := f.ReadTile(f.Dirs[0], 0)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	want := []float64{1000, 1500, 1200}
	for x, w := range want {
		if got := tile.At(x, 0, 0); got != w {
			t.Errorf("sample %d: got %v, want %v", x, got, w)
		}
	}
}

func TestUnpackBits(t *testing.T) {
	// PackBits sample stream from TIFF 6.0, section 9.
	in := []byte{0xFE, 0xAA, 0x02, 0x80, 0x00, 0x2A, 0xFD, 0xAA, 0x03, 0x80, 0x00, 0x2A, 0x22, 0xF7, 0xAA}
	want := []byte{
		0xAA, 0xAA, 0xAA, 0x80, 0x00, 0x2A, 0xAA, 0xAA, 0xAA, 0xAA, 0x80, 0x00,
		0x2A, 0x22, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA,
	}
	got, err := unpackBits(in)
	if err != nil {
		t.Fatalf("unpackBits: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x\nwant % x", got, want)
	}
	if _, err := unpackBits([]byte{0x05, 0x01}); !errors.Is(err, ErrFormat) {
		t.Errorf("truncated literal: got %v", err)
	}
}

func TestSlideCompression(t *testing.T) {
	tests := []struct {
		tag  int
		want slide.Compression
	}{
		{CompressionNone, slide.Uncompressed},
		{CompressionJPEG, slide.Jpeg},
		{CompressionJ2KYCbCr, slide.Jpeg2000},
		{CompressionJ2KRGB, slide.Jpeg2000},
		{CompressionJP2000, slide.Jpeg2000},
		{CompressionLZW, slide.LZW},
		{CompressionDeflate, slide.Zlib},
		{CompressionPackBits, slide.PackBits},
		{CompressionZstd, slide.CompressionUnknown},
	}
	for _, tt := range tests {
		if got := SlideCompression(tt.tag); got != tt.want {
			t.Errorf("SlideCompression(%d) = %s, want %s", tt.tag, got, tt.want)
		}
	}
	if tag, ok := TagFor(slide.Jpeg2000); !ok || SlideCompression(tag) != slide.Jpeg2000 {
		t.Errorf("TagFor(Jpeg2000) = %d, %v", tag, ok)
	}
	if _, ok := TagFor(slide.LZW); ok {
		t.Error("TagFor(LZW) should not be encodable")
	}
}
