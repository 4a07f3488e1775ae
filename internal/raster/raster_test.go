package raster

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
)

// createPatternRaster creates an 8-bit raster with smooth gradients per channel
func createPatternRaster(t *testing.T, width, height, channels int) *Raster {
	t.Helper()

	r, err := New(width, height, channels, Byte)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				v := 128 + 100*math.Sin(float64(x)/17+float64(c))*math.Cos(float64(y)/23)
				r.Set(x, y, c, v)
			}
		}
	}
	return r
}

func TestNew_UnsupportedType(t *testing.T) {
	for _, dt := range []DataType{Float16, Int64, Uint64, UnknownType, NoType} {
		if _, err := New(4, 4, 1, dt); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("New(%s): got %v, want ErrUnsupportedType", dt, err)
		}
	}
}

func TestDataTypeValues(t *testing.T) {
	tests := []struct {
		dt   DataType
		want int
		size int
	}{
		{Byte, 0, 1},
		{Int8, 1, 1},
		{Uint16, 2, 2},
		{Int16, 3, 2},
		{Int32, 4, 4},
		{Float32, 5, 4},
		{Float64, 6, 8},
		{Float16, 7, 2},
		{Uint32, 8, 4},
		{Int64, 9, 8},
		{Uint64, 10, 8},
		{UnknownType, 1024, 0},
		{NoType, 2048, 0},
	}
	for _, tt := range tests {
		t.Run(tt.dt.String(), func(t *testing.T) {
			if int(tt.dt) != tt.want {
				t.Errorf("value: got %d, want %d", int(tt.dt), tt.want)
			}
			if tt.dt.Size() != tt.size {
				t.Errorf("size: got %d, want %d", tt.dt.Size(), tt.size)
			}
			parsed, err := ParseDataType(tt.dt.String())
			if err != nil || parsed != tt.dt {
				t.Errorf("ParseDataType(%q) = %v, %v", tt.dt.String(), parsed, err)
			}
		})
	}
}

func TestSetSaturates(t *testing.T) {
	tests := []struct {
		dt   DataType
		in   float64
		want float64
	}{
		{Byte, 300, 255},
		{Byte, -4, 0},
		{Byte, 12.6, 13},
		{Int8, -200, -128},
		{Uint16, 70000, 65535},
		{Int16, -40000, -32768},
		{Int32, 1.5, 2},
		{Float32, 1.25, 1.25},
		{Float64, -7.5, -7.5},
	}
	for _, tt := range tests {
		t.Run(tt.dt.String(), func(t *testing.T) {
			r, err := New(1, 1, 1, tt.dt)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			r.Set(0, 0, 0, tt.in)
			if got := r.At(0, 0, 0); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlaneLayout(t *testing.T) {
	r, err := NewStack(3, 2, 2, 4, 3, Uint16)
	if err != nil {
		t.Fatalf("NewStack failed: %v", err)
	}
	r.SetPlane(2, 1, 1, 3, 2, 4242)
	if got := r.Plane(3, 2).At(2, 1, 1); got != 4242 {
		t.Errorf("Plane view: got %v, want 4242", got)
	}
	if got := r.Plane(0, 0).At(2, 1, 1); got != 0 {
		t.Errorf("other plane touched: got %v", got)
	}
	if len(r.Pix) != 3*2*2*4*3*2 {
		t.Errorf("Pix length: got %d", len(r.Pix))
	}
}

func TestCropAndPaste(t *testing.T) {
	src := createPatternRaster(t, 40, 30, 3)

	crop, err := src.Crop(image.Rect(10, 5, 25, 20))
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if crop.Width != 15 || crop.Height != 15 {
		t.Fatalf("crop size: got %dx%d, want 15x15", crop.Width, crop.Height)
	}
	if crop.At(0, 0, 2) != src.At(10, 5, 2) {
		t.Errorf("crop origin sample mismatch")
	}

	dst, _ := New(40, 30, 3, Byte)
	if err := dst.Paste(crop, 10, 5, 0, 0); err != nil {
		t.Fatalf("Paste failed: %v", err)
	}
	if dst.At(24, 19, 1) != src.At(24, 19, 1) {
		t.Errorf("pasted sample mismatch")
	}
	if dst.At(9, 5, 0) != 0 {
		t.Errorf("paste wrote outside its rectangle")
	}

	// Pasting partially outside is clipped
	if err := dst.Paste(crop, 35, 25, 0, 0); err != nil {
		t.Fatalf("clipped Paste failed: %v", err)
	}
	if dst.At(39, 29, 0) != crop.At(4, 4, 0) {
		t.Errorf("clipped paste sample mismatch")
	}

	if _, err := src.Crop(image.Rect(50, 50, 60, 60)); err == nil {
		t.Error("expected error cropping outside raster")
	}
}

func TestSelectChannels(t *testing.T) {
	src := createPatternRaster(t, 8, 8, 3)

	tests := []struct {
		name    string
		indices []int
		wantErr bool
	}{
		{"reorder", []int{2, 0, 1}, false},
		{"duplicate", []int{1, 1}, false},
		{"single", []int{0}, false},
		{"out of range", []int{3}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := src.SelectChannels(tt.indices)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectChannels failed: %v", err)
			}
			if out.Channels != len(tt.indices) {
				t.Fatalf("channels: got %d, want %d", out.Channels, len(tt.indices))
			}
			for i, c := range tt.indices {
				if out.At(5, 6, i) != src.At(5, 6, c) {
					t.Errorf("channel %d != source channel %d", i, c)
				}
			}
		})
	}
}

func TestImageRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		img      image.Image
		channels int
		dt       DataType
	}{
		{"gray", image.NewGray(image.Rect(0, 0, 7, 5)), 1, Byte},
		{"gray16", image.NewGray16(image.Rect(0, 0, 7, 5)), 1, Uint16},
		{"nrgba", image.NewNRGBA(image.Rect(0, 0, 7, 5)), 4, Byte},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromImage(tt.img)
			if r.Channels != tt.channels || r.Type != tt.dt {
				t.Fatalf("got %d channels of %s, want %d of %s", r.Channels, r.Type, tt.channels, tt.dt)
			}
			if r.Width != 7 || r.Height != 5 {
				t.Fatalf("size: got %dx%d", r.Width, r.Height)
			}
			back, err := r.ToImage()
			if err != nil {
				t.Fatalf("ToImage failed: %v", err)
			}
			if back.Bounds() != tt.img.Bounds() {
				t.Errorf("bounds: got %v, want %v", back.Bounds(), tt.img.Bounds())
			}
		})
	}

	opaque := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range opaque.Pix {
		opaque.Pix[i] = 0xff
	}
	opaque.Set(1, 2, color.RGBA{10, 20, 30, 255})
	r := FromImage(opaque)
	if r.Channels != 3 {
		t.Fatalf("opaque RGBA: got %d channels, want 3", r.Channels)
	}
	if r.At(1, 2, 0) != 10 || r.At(1, 2, 1) != 20 || r.At(1, 2, 2) != 30 {
		t.Errorf("sample mismatch at (1,2)")
	}
}

func TestTo8Bit(t *testing.T) {
	r, _ := New(2, 1, 1, Float32)
	r.Set(0, 0, 0, -1)
	r.Set(1, 0, 0, 3)
	out := r.To8Bit()
	if out.Type != Byte {
		t.Fatalf("type: got %s", out.Type)
	}
	if out.At(0, 0, 0) != 0 || out.At(1, 0, 0) != 255 {
		t.Errorf("stretch: got %v, %v", out.At(0, 0, 0), out.At(1, 0, 0))
	}
}

func TestResize_NoOp(t *testing.T) {
	src := createPatternRaster(t, 33, 21, 2)
	out, err := Resize(src, 33, 21)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if !out.Equal(src) {
		t.Error("same-size resize changed samples")
	}
}

func TestResize_Shape(t *testing.T) {
	src, _ := NewStack(20, 10, 3, 2, 2, Uint16)
	out, err := Resize(src, 7, 31)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if out.Width != 7 || out.Height != 31 || out.Channels != 3 || out.Slices != 2 || out.Frames != 2 {
		t.Errorf("shape: got %dx%dx%d z=%d t=%d", out.Width, out.Height, out.Channels, out.Slices, out.Frames)
	}
	if out.Type != Uint16 {
		t.Errorf("type: got %s", out.Type)
	}
}

func TestResize_AreaAverage(t *testing.T) {
	// 2x reduction of a checkerboard averages each 2x2 block exactly
	src, _ := New(4, 4, 1, Byte)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if (x+y)%2 == 0 {
				src.Set(x, y, 0, 200)
			}
		}
	}
	out, err := Resize(src, 2, 2)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if got := out.At(x, y, 0); got != 100 {
				t.Errorf("(%d,%d): got %v, want 100", x, y, got)
			}
		}
	}
}

func TestResize_PlanesIndependent(t *testing.T) {
	src, _ := NewStack(8, 8, 1, 2, 1, Byte)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.SetPlane(x, y, 0, 1, 0, 250)
		}
	}
	out, err := Resize(src, 3, 3)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if out.AtPlane(1, 1, 0, 0, 0) != 0 {
		t.Errorf("plane 0 picked up samples from plane 1")
	}
	if out.AtPlane(1, 1, 0, 1, 0) != 250 {
		t.Errorf("plane 1: got %v, want 250", out.AtPlane(1, 1, 0, 1, 0))
	}
}

func TestResize_MatchesReferenceDownscale(t *testing.T) {
	src := createPatternRaster(t, 300, 200, 3)
	img, err := src.ToImage()
	if err != nil {
		t.Fatalf("ToImage failed: %v", err)
	}

	for _, factor := range []float64{1.5, 2, 3.3, 5} {
		w := int(math.Round(300 / factor))
		h := int(math.Round(200 / factor))
		got, err := Resize(src, w, h)
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		ref := FromImage(imaging.Resize(img, w, h, imaging.Box))

		score, err := Compare(got, ref)
		if err != nil {
			t.Fatalf("Compare failed: %v", err)
		}
		if score < 0.85 {
			t.Errorf("factor %.1f: similarity %.3f below 0.85", factor, score)
		}
		detail, _ := CompareDetailed(got, ref)
		if detail.SquaredDifference > 0.05 {
			t.Errorf("factor %.1f: squared difference %.4f above 0.05", factor, detail.SquaredDifference)
		}
	}
}

func TestResize_Invalid(t *testing.T) {
	src := createPatternRaster(t, 4, 4, 1)
	if _, err := Resize(src, 0, 4); err == nil {
		t.Error("expected error for zero width")
	}
}
