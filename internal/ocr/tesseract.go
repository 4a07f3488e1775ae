package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	slideimg "github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// ErrNoLabel is returned when a slide has no auxiliary label image.
var ErrNoLabel = errors.New("slide has no label image")

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word or text block with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this text in the source coordinates.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the complete results of text extraction.
type OCRResult struct {
	// FullText is all recognized text as a single string with original spacing/newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words with their bounding boxes and confidence scores.
	// May be empty if bounding box extraction fails (text will still be in FullText).
	Regions []TextRegion `json:"regions"`
}

// Options tune a recognition run.
type Options struct {
	// Language is a Tesseract language code such as "eng"; empty means "eng".
	Language string

	// TessdataPrefix overrides the directory holding the traineddata files.
	TessdataPrefix string

	// Rotate turns the image clockwise by 90, 180 or 270 degrees before
	// recognition. Slide labels are often scanned sideways.
	Rotate int

	// Upscale enlarges the image before recognition. Values of 1 or less
	// leave it unchanged. Bounds are reported in the original coordinates.
	Upscale float64
}

func (o Options) newClient() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if o.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(o.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	lang := o.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return client, nil
}

// prepare applies rotation and upscaling and returns the PNG bytes handed to
// Tesseract together with the mapping back to the source image.
func (o Options) prepare(img image.Image) ([]byte, func(image.Rectangle) Bounds, error) {
	src := img.Bounds()
	switch o.Rotate {
	case 0:
	case 90:
		img = imaging.Rotate270(img) // imaging rotates counter-clockwise
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	default:
		return nil, nil, fmt.Errorf("rotation must be 0, 90, 180 or 270, got %d", o.Rotate)
	}
	scale := 1.0
	if o.Upscale > 1 {
		scale = o.Upscale
		b := img.Bounds()
		img = imaging.Resize(img, int(float64(b.Dx())*scale), int(float64(b.Dy())*scale), imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, nil, fmt.Errorf("failed to encode image: %w", err)
	}

	w, h := src.Dx(), src.Dy()
	back := func(r image.Rectangle) Bounds {
		x1, y1 := int(float64(r.Min.X)/scale), int(float64(r.Min.Y)/scale)
		x2, y2 := int(float64(r.Max.X)/scale), int(float64(r.Max.Y)/scale)
		switch o.Rotate {
		case 90:
			x1, y1, x2, y2 = y1, h-x2, y2, h-x1
		case 180:
			x1, y1, x2, y2 = w-x2, h-y2, w-x1, h-y1
		case 270:
			x1, y1, x2, y2 = w-y2, x1, w-y1, x2
		}
		return Bounds{X1: x1 + src.Min.X, Y1: y1 + src.Min.Y, X2: x2 + src.Min.X, Y2: y2 + src.Min.Y}
	}
	return buf.Bytes(), back, nil
}

// ExtractImageText performs OCR on an in-memory image.
//
// Word-level results use Tesseract's RIL_WORD iterator level; empty words are
// dropped. If word-level bounding box extraction fails, the full text is
// still returned with an empty Regions slice.
func ExtractImageText(img image.Image, opts Options) (*OCRResult, error) {
	data, back, err := opts.prepare(img)
	if err != nil {
		return nil, err
	}
	client, err := opts.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &OCRResult{FullText: text, Regions: []TextRegion{}}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     back(box.Box),
		})
	}

	return &OCRResult{FullText: text, Regions: regions}, nil
}

// sceneImage reads region of scene at full resolution as an 8-bit image.
func sceneImage(scene *slide.Scene, region slideimg.Region) (image.Image, error) {
	block, err := slideimg.ReadRegion(scene, region, 1, nil)
	if err != nil {
		return nil, err
	}
	d, err := slideimg.Displayable(block, "png")
	if err != nil {
		return nil, err
	}
	return d.To8Bit().ToImage()
}

// ExtractSceneText reads a region of a scene at full resolution and runs
// OCR on it. Bounds are reported in scene coordinates.
func ExtractSceneText(scene *slide.Scene, region slideimg.Region, opts Options) (*OCRResult, error) {
	img, err := sceneImage(scene, region)
	if err != nil {
		return nil, err
	}
	result, err := ExtractImageText(img, opts)
	if err != nil {
		return nil, err
	}
	for i := range result.Regions {
		b := &result.Regions[i].Bounds
		b.X1 += region.X1
		b.Y1 += region.Y1
		b.X2 += region.X1
		b.Y2 += region.Y1
	}
	return result, nil
}

// LabelScene returns the auxiliary image of s whose name is "label", matched
// case-insensitively.
func LabelScene(s *slide.Slide) (*slide.Scene, error) {
	for _, name := range s.AuxImageNames() {
		if strings.EqualFold(name, "label") {
			return s.AuxImage(name)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoLabel, s.FilePath())
}

// ExtractLabelText recognizes the text printed on the slide label.
func ExtractLabelText(s *slide.Slide, opts Options) (*OCRResult, error) {
	label, err := LabelScene(s)
	if err != nil {
		return nil, err
	}
	return ExtractSceneText(label, wholeScene(label), opts)
}

// DetectLabelRegions locates the text blocks on the slide label without
// recognizing them.
func DetectLabelRegions(s *slide.Slide, minConfidence float64, opts Options) (*DetectTextRegionsResult, error) {
	label, err := LabelScene(s)
	if err != nil {
		return nil, err
	}
	img, err := sceneImage(label, wholeScene(label))
	if err != nil {
		return nil, err
	}
	return DetectTextRegions(img, minConfidence, opts)
}

func wholeScene(scene *slide.Scene) slideimg.Region {
	r := scene.Rect()
	return slideimg.Region{X2: r.Width, Y2: r.Height}
}

// DetectTextRegionsResult contains text region locations without the actual text content.
type DetectTextRegionsResult struct {
	Regions []TextRegionBox `json:"regions"`
	Count   int             `json:"count"`
}

// TextRegionBox represents a detected text region's location without its content.
type TextRegionBox struct {
	Bounds     Bounds  `json:"bounds"`
	Confidence float64 `json:"confidence"`
}

// DetectTextRegions finds paragraph-level text blocks (RIL_BLOCK) in img
// whose confidence is at least minConfidence (0.0 to 1.0).
func DetectTextRegions(img image.Image, minConfidence float64, opts Options) (*DetectTextRegionsResult, error) {
	data, back, err := opts.prepare(img)
	if err != nil {
		return nil, err
	}
	client, err := opts.newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	regions := make([]TextRegionBox, 0)
	for _, box := range boxes {
		confidence := float64(box.Confidence) / 100.0
		if confidence < minConfidence {
			continue
		}
		regions = append(regions, TextRegionBox{Bounds: back(box.Box), Confidence: confidence})
	}

	return &DetectTextRegionsResult{Regions: regions, Count: len(regions)}, nil
}

// OCRInfo contains information about the OCR subsystem.
type OCRInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Backend   string `json:"backend"`
	Languages string `json:"languages,omitempty"`
}

// GetOCRInfo returns information about OCR availability.
func GetOCRInfo(opts Options) OCRInfo {
	info := OCRInfo{Backend: "gosseract"}
	client := gosseract.NewClient()
	defer client.Close()
	if opts.TessdataPrefix != "" {
		client.SetTessdataPrefix(opts.TessdataPrefix)
	}
	info.Version = client.Version()
	info.Available = info.Version != ""
	info.Languages = opts.Language
	return info
}
