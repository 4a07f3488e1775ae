package ocr

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	slideimg "github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// createImageWithText renders text in black on white and scales it up by
// pixel replication, which Tesseract reads far more reliably than 13px text.
func createImageWithText(text string, scale int) *image.RGBA {
	w, h := len(text)*7+40, 40
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 20, 25, text, color.Black)

	img := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			img.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return img
}

// skipIfUnavailable skips the test when the failure comes from a missing
// Tesseract installation or language data.
func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") ||
		strings.Contains(msg, "language") || strings.Contains(msg, "tessdata") {
		t.Skipf("Tesseract not available: %v", err)
	}
}

// labelSlide builds an in-memory slide with a main image and a label.
func labelSlide(t *testing.T, label *image.RGBA) *slide.Slide {
	t.Helper()
	main, _ := raster.New(64, 64, 3, raster.Byte)
	c := &slide.Contents{Scenes: []slide.Source{slide.NewRasterSource(slide.SceneInfo{Name: "Image"}, main)}}
	if label != nil {
		src := slide.NewRasterSource(slide.SceneInfo{Name: "Label"}, raster.FromImage(label))
		c.Scenes = append(c.Scenes, src)
		c.Aux = append(c.Aux, slide.NamedSource{Name: "Label", Source: src})
	}
	s, err := slide.New("memory", "TEST", c)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPrepare_BoundsMapping(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 40))

	tests := []struct {
		name   string
		opts   Options
		box    image.Rectangle // in the prepared image
		want   Bounds          // in the source image
		wantWH image.Point
	}{
		{"identity", Options{}, image.Rect(10, 5, 30, 15), Bounds{10, 5, 30, 15}, image.Pt(100, 40)},
		{"upscale", Options{Upscale: 2}, image.Rect(20, 10, 60, 30), Bounds{10, 5, 30, 15}, image.Pt(200, 80)},
		// clockwise: source (x,y) lands at (h-y, x) in the 40x100 image
		{"rotate 90", Options{Rotate: 90}, image.Rect(25, 10, 35, 30), Bounds{10, 5, 30, 15}, image.Pt(40, 100)},
		{"rotate 180", Options{Rotate: 180}, image.Rect(70, 25, 90, 35), Bounds{10, 5, 30, 15}, image.Pt(100, 40)},
		{"rotate 270", Options{Rotate: 270}, image.Rect(5, 70, 15, 90), Bounds{10, 5, 30, 15}, image.Pt(40, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, back, err := tt.opts.prepare(img)
			if err != nil {
				t.Fatalf("prepare failed: %v", err)
			}
			cfg, _, err := image.DecodeConfig(strings.NewReader(string(data)))
			if err != nil {
				t.Fatalf("prepared bytes are not an image: %v", err)
			}
			if cfg.Width != tt.wantWH.X || cfg.Height != tt.wantWH.Y {
				t.Errorf("prepared size %dx%d, want %v", cfg.Width, cfg.Height, tt.wantWH)
			}
			if got := back(tt.box); got != tt.want {
				t.Errorf("back(%v) = %+v, want %+v", tt.box, got, tt.want)
			}
		})
	}

	if _, _, err := (Options{Rotate: 45}).prepare(img); err == nil {
		t.Error("expected error for 45 degree rotation")
	}
}

func TestLabelScene(t *testing.T) {
	s := labelSlide(t, createImageWithText("S-1234", 1))
	label, err := LabelScene(s)
	if err != nil {
		t.Fatalf("LabelScene failed: %v", err)
	}
	if label.Name() != "Label" {
		t.Errorf("Name: got %s", label.Name())
	}

	bare := labelSlide(t, nil)
	if _, err := LabelScene(bare); !errors.Is(err, ErrNoLabel) {
		t.Errorf("got %v, want ErrNoLabel", err)
	}
	if _, err := ExtractLabelText(bare, Options{}); !errors.Is(err, ErrNoLabel) {
		t.Errorf("ExtractLabelText: got %v, want ErrNoLabel", err)
	}
	if _, err := DetectLabelRegions(bare, 0, Options{}); !errors.Is(err, ErrNoLabel) {
		t.Errorf("DetectLabelRegions: got %v, want ErrNoLabel", err)
	}
}

func TestExtractImageText_RealText(t *testing.T) {
	result, err := ExtractImageText(createImageWithText("HELLO WORLD", 4), Options{Language: "eng"})
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("ExtractImageText failed: %v", err)
	}
	if !strings.Contains(strings.ToUpper(result.FullText), "HELLO") {
		t.Errorf("FullText %q does not contain HELLO", result.FullText)
	}
	for _, r := range result.Regions {
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Errorf("confidence %f outside [0,1]", r.Confidence)
		}
	}
}

func TestExtractLabelText_Rotated(t *testing.T) {
	text := createImageWithText("SLIDE 42", 4)
	// store the label turned counter-clockwise, as scanners often do
	s := labelSlide(t, toRGBA(rotateCCW(text)))

	result, err := ExtractLabelText(s, Options{Rotate: 90})
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("ExtractLabelText failed: %v", err)
	}
	if !strings.Contains(strings.ToUpper(result.FullText), "SLIDE") {
		t.Errorf("FullText %q does not contain SLIDE", result.FullText)
	}
	label, _ := LabelScene(s)
	r := label.Rect()
	for _, reg := range result.Regions {
		if reg.Bounds.X1 < 0 || reg.Bounds.Y1 < 0 || reg.Bounds.X2 > r.Width || reg.Bounds.Y2 > r.Height {
			t.Errorf("region %+v outside label %dx%d", reg.Bounds, r.Width, r.Height)
		}
	}
}

func TestExtractSceneText_Offset(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 600, 300))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	text := createImageWithText("OFFSET", 3)
	draw.Draw(canvas, text.Bounds().Add(image.Pt(200, 100)), text, image.Point{}, draw.Src)
	s := labelSlide(t, canvas)
	label, _ := LabelScene(s)

	region := slideimg.Region{X1: 150, Y1: 80, X2: 600, Y2: 300}
	result, err := ExtractSceneText(label, region, Options{})
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("ExtractSceneText failed: %v", err)
	}
	for _, reg := range result.Regions {
		if reg.Bounds.X1 < region.X1 || reg.Bounds.Y1 < region.Y1 {
			t.Errorf("bounds %+v not shifted into scene coordinates", reg.Bounds)
		}
	}
}

func TestDetectTextRegions_MinConfidence(t *testing.T) {
	img := createImageWithText("REGION", 4)
	all, err := DetectTextRegions(img, 0, Options{})
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("DetectTextRegions failed: %v", err)
	}
	none, err := DetectTextRegions(img, 1.01, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if none.Count != 0 || none.Count > all.Count {
		t.Errorf("confidence filter ignored: all=%d none=%d", all.Count, none.Count)
	}
}

func TestDetectLabelRegions(t *testing.T) {
	s := labelSlide(t, createImageWithText("BLOCK", 4))
	res, err := DetectLabelRegions(s, 0, Options{})
	if err != nil {
		skipIfUnavailable(t, err)
		t.Fatalf("DetectLabelRegions failed: %v", err)
	}
	label, _ := LabelScene(s)
	r := label.Rect()
	if res.Count != len(res.Regions) {
		t.Errorf("Count %d, %d regions", res.Count, len(res.Regions))
	}
	for _, reg := range res.Regions {
		if reg.Bounds.X2 > r.Width || reg.Bounds.Y2 > r.Height {
			t.Errorf("region %+v outside label %dx%d", reg.Bounds, r.Width, r.Height)
		}
	}
}

func TestGetOCRInfo(t *testing.T) {
	info := GetOCRInfo(Options{Language: "eng"})
	if info.Backend != "gosseract" || info.Languages != "eng" {
		t.Errorf("info: %+v", info)
	}
	if info.Available != (info.Version != "") {
		t.Errorf("Available %v with version %q", info.Available, info.Version)
	}
}

func rotateCCW(img *image.RGBA) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(y, b.Dx()-1-x, img.At(x, y))
		}
	}
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if r, ok := img.(*image.RGBA); ok {
		return r
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
