package slide

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

func TestSlide_ScenesAndAux(t *testing.T) {
	main := newPyramidSource(t, createPatternStack(t, 64, 64, 3, 1, 1), 32, 1)
	label := NewRasterSource(SceneInfo{Name: "Label"}, createPatternStack(t, 20, 10, 3, 1, 1))
	macro := NewRasterSource(SceneInfo{Name: "Macro"}, createPatternStack(t, 30, 10, 3, 1, 1))

	s, err := New("slide.bin", "TEST", &Contents{
		Scenes:   []Source{main, label, macro},
		Aux:      []NamedSource{{"Label", label}, {"Macro", macro}},
		Metadata: "raw text",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if s.NumScenes() != 3 {
		t.Errorf("NumScenes: got %d, want 3", s.NumScenes())
	}
	if s.RawMetadata() != "raw text" || s.FilePath() != "slide.bin" || s.Driver() != "TEST" {
		t.Errorf("slide attributes: %q %q %q", s.RawMetadata(), s.FilePath(), s.Driver())
	}
	if got := s.AuxImageNames(); !reflect.DeepEqual(got, []string{"Label", "Macro"}) {
		t.Errorf("AuxImageNames: got %v", got)
	}

	aux, err := s.AuxImage("Macro")
	if err != nil {
		t.Fatalf("AuxImage failed: %v", err)
	}
	if aux.Rect().Width != 30 || aux.Name() != "Macro" {
		t.Errorf("aux scene: %q %+v", aux.Name(), aux.Rect())
	}
	if aux.FilePath() != "slide.bin" {
		t.Errorf("aux FilePath: got %q", aux.FilePath())
	}

	first, _ := s.Scene(1)
	second, _ := s.Scene(1)
	if first != second {
		t.Error("Scene returned different wrappers for the same index")
	}

	if _, err := s.Scene(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Scene(3): got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := s.Scene(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Scene(-1): got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := s.AuxImage("Barcode"); !errors.Is(err, ErrNameNotFound) {
		t.Errorf("AuxImage(Barcode): got %v, want ErrNameNotFound", err)
	}
}

func TestSlide_DuplicateAux(t *testing.T) {
	src := NewRasterSource(SceneInfo{}, createPatternStack(t, 4, 4, 1, 1, 1))
	_, err := New("x", "TEST", &Contents{Aux: []NamedSource{{"Label", src}, {"Label", src}}})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("got %v, want ErrOpen", err)
	}
}

func TestSlide_CloseInvalidatesScenes(t *testing.T) {
	s := openTestSlide(t, newPyramidSource(t, createPatternStack(t, 32, 32, 1, 1, 1), 16, 1))
	scene, err := s.Scene(0)
	if err != nil {
		t.Fatalf("Scene failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := scene.ReadBlock(BlockRequest{}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("ReadBlock after Close: got %v, want ErrStaleHandle", err)
	}
	if _, err := s.Scene(0); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Scene after Close: got %v, want ErrStaleHandle", err)
	}
	if scene.Valid() {
		t.Error("Valid after Close")
	}

	stale := map[string]func() error{
		"Info":            func() error { _, err := scene.Info(); return err },
		"Levels":          func() error { _, err := scene.Levels(); return err },
		"RawMetadata":     func() error { _, err := scene.RawMetadata(); return err },
		"ChannelDataType": func() error { _, err := scene.ChannelDataType(0); return err },
		"ChannelName":     func() error { _, err := scene.ChannelName(0); return err },
	}
	for name, call := range stale {
		if err := call(); !errors.Is(err, ErrStaleHandle) {
			t.Errorf("%s after Close: got %v, want ErrStaleHandle", name, err)
		}
	}
	if scene.Rect() != (Rect{}) || scene.NumChannels() != 0 || scene.Name() != "" {
		t.Errorf("accessors after Close: %+v %d %q", scene.Rect(), scene.NumChannels(), scene.Name())
	}
}

func TestScene_RawMetadata(t *testing.T) {
	s, err := New("memory", "TEST", &Contents{
		Scenes:   []Source{newPyramidSource(t, createPatternStack(t, 32, 32, 1, 1, 1), 16, 1)},
		Metadata: "slide text",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	scene, _ := s.Scene(0)
	if !scene.Valid() {
		t.Fatal("open scene reported invalid")
	}
	// Sources without metadata of their own fall back to the slide's.
	meta, err := scene.RawMetadata()
	if err != nil || meta != "slide text" {
		t.Errorf("RawMetadata: got %q, %v", meta, err)
	}
}

func TestSceneAttributes(t *testing.T) {
	src := NewRasterSource(SceneInfo{
		Name:          "Image",
		Channels:      []ChannelInfo{{Name: "DAPI"}},
		Resolution:    Resolution{X: 2.5e-7, Y: 2.5e-7},
		Magnification: 40,
		Compression:   Jpeg2000,
	}, createPatternStack(t, 10, 8, 2, 3, 1))
	s := openTestSlide(t, src)
	scene, _ := s.Scene(0)

	if scene.NumChannels() != 2 || scene.NumZSlices() != 3 || scene.NumTFrames() != 1 {
		t.Errorf("counts: c=%d z=%d t=%d", scene.NumChannels(), scene.NumZSlices(), scene.NumTFrames())
	}
	if name, _ := scene.ChannelName(0); name != "DAPI" {
		t.Errorf("ChannelName(0): got %q", name)
	}
	if dt, _ := scene.ChannelDataType(1); dt != raster.Byte {
		t.Errorf("ChannelDataType(1): got %s", dt)
	}
	if _, err := scene.ChannelDataType(2); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("ChannelDataType(2): got %v", err)
	}
	if scene.Magnification() != 40 || scene.Compression() != Jpeg2000 || scene.Resolution().X != 2.5e-7 {
		t.Errorf("attributes: mag %v compression %s res %+v", scene.Magnification(), scene.Compression(), scene.Resolution())
	}
	if levels, err := scene.Levels(); err != nil || len(levels) != 1 {
		t.Errorf("Levels: got %d, %v", len(levels), err)
	}
}

func TestRegistry(t *testing.T) {
	img := createPatternStack(t, 16, 16, 1, 1, 1)
	contents := func() *Contents {
		return &Contents{Scenes: []Source{NewRasterSource(SceneInfo{Name: "only"}, img)}}
	}
	dir := t.TempDir()
	svsPath := filepath.Join(dir, "a.svs")
	pngPath := filepath.Join(dir, "b.png")
	for _, p := range []string{svsPath, pngPath} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRegistry(WithWorkers(2))
	if err := r.Register(&fakeDriver{id: "SVS", accepts: svsPath, contents: contents}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeDriver{id: "GDAL", accepts: pngPath, contents: contents}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeDriver{id: "SVS"}); err == nil {
		t.Error("duplicate ID accepted")
	}

	if got := r.IDs(); !reflect.DeepEqual(got, []string{"GDAL", "SVS"}) {
		t.Errorf("IDs: got %v", got)
	}

	tests := []struct {
		name       string
		path       string
		driver     string
		wantDriver string
		wantErr    error
	}{
		{"explicit", svsPath, "SVS", "SVS", nil},
		{"auto svs", svsPath, "AUTO", "SVS", nil},
		{"auto lower case", pngPath, "auto", "GDAL", nil},
		{"unknown driver", svsPath, "CZI", "", ErrUnknownDriver},
		{"wrong driver", pngPath, "SVS", "", ErrOpen},
		{"missing file", filepath.Join(dir, "none.svs"), "AUTO", "", ErrOpen},
		{"nobody probes", dir, "AUTO", "", ErrOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := r.Open(tt.path, tt.driver)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer s.Close()
			if s.Driver() != tt.wantDriver {
				t.Errorf("driver: got %s, want %s", s.Driver(), tt.wantDriver)
			}
			if s.NumScenes() != 1 {
				t.Errorf("NumScenes: got %d", s.NumScenes())
			}
		})
	}
}

func TestHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := OpenHandle(path)
	if err != nil {
		t.Fatalf("OpenHandle failed: %v", err)
	}
	if h.Size() != 10 {
		t.Errorf("Size: got %d", h.Size())
	}
	buf := make([]byte, 3)
	if _, err := h.ReadAt(buf, 4); err != nil || string(buf) != "456" {
		t.Errorf("ReadAt: %q, %v", buf, err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := h.ReadAt(buf, 0); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("ReadAt after Close: got %v, want ErrStaleHandle", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, err := OpenHandle(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrOpen) {
		t.Errorf("missing file: got %v, want ErrOpen", err)
	}
}

func TestCompressionValues(t *testing.T) {
	tests := []struct {
		c    Compression
		want int
		name string
	}{
		{CompressionUnknown, 0, "Unknown"},
		{Uncompressed, 1, "Uncompressed"},
		{Jpeg, 2, "Jpeg"},
		{Jpeg2000, 5, "Jpeg2000"},
		{LZW, 6, "LZW"},
		{Zlib, 11, "Zlib"},
		{PackBits, 15, "PackBits"},
		{JBIG2, 25, "JBIG2"},
		{JpegLossless, 30, "JpegLossless"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.c) != tt.want {
				t.Errorf("value: got %d, want %d", int(tt.c), tt.want)
			}
			if tt.c.String() != tt.name {
				t.Errorf("String: got %q, want %q", tt.c.String(), tt.name)
			}
			parsed, err := ParseCompression(tt.name)
			if err != nil || parsed != tt.c {
				t.Errorf("ParseCompression(%q) = %v, %v", tt.name, parsed, err)
			}
		})
	}
}
