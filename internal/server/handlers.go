package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ironsheep/slide-tools-mcp/internal/converter"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/ocr"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "slide_open", "scene_read_block").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	s.logger.Debug("tool done", "tool", params.Name, "elapsed", time.Since(start))

	return resultResponse(req.ID, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": mustMarshalJSON(result)},
		},
	})
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Opens slides through the cache
//  4. Calls the appropriate slide/imaging/ocr/converter function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Slide Information
	case "slide_drivers":
		return s.handleSlideDrivers(args)
	case "slide_open":
		return s.handleSlideOpen(args)
	case "scene_info":
		return s.handleSceneInfo(args)

	// Region Operations
	case "scene_read_block":
		return s.handleSceneReadBlock(args)
	case "slide_aux_image":
		return s.handleSlideAuxImage(args)

	// Pixel Operations
	case "scene_sample_pixel":
		return s.handleSceneSamplePixel(args)
	case "scene_measure_distance":
		return s.handleSceneMeasureDistance(args)
	case "images_compare":
		return s.handleImagesCompare(args)

	// OCR Operations
	case "label_ocr":
		return s.handleLabelOCR(args)

	// Export
	case "scene_convert":
		return s.handleSceneConvert(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// sceneArgs select a scene, or an auxiliary image when Aux is set.
type sceneArgs struct {
	Path   string `json:"path"`
	Driver string `json:"driver"`
	Scene  int    `json:"scene"`
	Aux    string `json:"aux"`
}

func (s *Server) openSlide(path, driver string) (*slide.Slide, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if driver == "" {
		driver = s.cfg.Engine.DefaultDriver
	}
	return s.cache.Open(path, driver)
}

func (s *Server) scene(a sceneArgs) (*slide.Slide, *slide.Scene, error) {
	sl, err := s.openSlide(a.Path, a.Driver)
	if err != nil {
		return nil, nil, err
	}
	var sc *slide.Scene
	if a.Aux != "" {
		sc, err = sl.AuxImage(a.Aux)
	} else {
		sc, err = sl.Scene(a.Scene)
	}
	if err != nil {
		return nil, nil, err
	}
	return sl, sc, nil
}

// === Slide Information Handlers ===

func (s *Server) handleSlideDrivers(args json.RawMessage) (interface{}, error) {
	return map[string]interface{}{
		"drivers": s.cache.Registry().IDs(),
	}, nil
}

type slideOpenArgs struct {
	Path   string `json:"path"`
	Driver string `json:"driver"`
}

func (s *Server) handleSlideOpen(args json.RawMessage) (interface{}, error) {
	var a slideOpenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	driver := a.Driver
	if driver == "" {
		driver = s.cfg.Engine.DefaultDriver
	}
	return imaging.LoadSlideInfo(s.cache, a.Path, driver)
}

// sceneInfoResult flattens SceneInfo and adds the pyramid.
type sceneInfoResult struct {
	slide.SceneInfo
	Levels []slide.Level `json:"levels"`
}

func (s *Server) handleSceneInfo(args json.RawMessage) (interface{}, error) {
	var a sceneArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, sc, err := s.scene(a)
	if err != nil {
		return nil, err
	}
	info, err := sc.Info()
	if err != nil {
		return nil, err
	}
	levels, err := sc.Levels()
	if err != nil {
		return nil, err
	}
	return sceneInfoResult{SceneInfo: info, Levels: levels}, nil
}

// === Region Operation Handlers ===

type sceneReadBlockArgs struct {
	sceneArgs
	X1              int    `json:"x1"`
	Y1              int    `json:"y1"`
	X2              int    `json:"x2"`
	Y2              int    `json:"y2"`
	Region          string `json:"region"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	MaxSize         int    `json:"max_size"`
	Channels        []int  `json:"channels"`
	Z               int    `json:"z"`
	T               int    `json:"t"`
	Format          string `json:"format"`
	Quality         int    `json:"quality"`
	GridSpacing     int    `json:"grid_spacing"`
	ShowCoordinates bool   `json:"show_coordinates"`
	GridColor       string `json:"grid_color"`
}

type blockResult struct {
	*imaging.BlockResult
	Region slide.Rect `json:"region"`
}

func (s *Server) handleSceneReadBlock(args json.RawMessage) (interface{}, error) {
	var a sceneReadBlockArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MaxSize == 0 {
		a.MaxSize = 1024
	}
	if a.GridColor == "" {
		a.GridColor = "#FF000080"
	}
	_, sc, err := s.scene(a.sceneArgs)
	if err != nil {
		return nil, err
	}

	var region imaging.Region
	if a.Region != "" {
		if region, err = imaging.NamedRegion(sc, a.Region); err != nil {
			return nil, err
		}
	} else {
		r := sc.Rect()
		region = imaging.Region{X1: a.X1, Y1: a.Y1, X2: a.X2, Y2: a.Y2}
		if region.X2 == 0 {
			region.X2 = r.Width
		}
		if region.Y2 == 0 {
			region.Y2 = r.Height
		}
		if region.X1 >= region.X2 || region.Y1 >= region.Y2 {
			return nil, fmt.Errorf("%w: x1 must be < x2, y1 must be < y2", slide.ErrInvalidRegion)
		}
	}

	rect := region.Rect()
	size := slide.Size{Width: a.Width, Height: a.Height}
	if size.Width == 0 && size.Height == 0 {
		// the scene clamps the rectangle; fit what will actually be read
		if rect, err = imaging.VisibleRect(sc, rect); err != nil {
			return nil, err
		}
		size = imaging.FitSize(rect.Width, rect.Height, a.MaxSize)
	}

	block, err := sc.ReadBlock(slide.BlockRequest{
		Rect:     rect,
		Size:     size,
		Channels: a.Channels,
		ZRange:   slide.Range{First: a.Z, Last: a.Z + 1},
		TRange:   slide.Range{First: a.T, Last: a.T + 1},
	})
	if err != nil {
		return nil, err
	}
	if a.GridSpacing > 0 {
		if block, err = imaging.GridOverlay(block, rect, a.GridSpacing, a.ShowCoordinates, a.GridColor); err != nil {
			return nil, err
		}
	}
	res, err := imaging.EncodeBlock(block, a.Format, a.Quality)
	if err != nil {
		return nil, err
	}
	return blockResult{BlockResult: res, Region: rect}, nil
}

type slideAuxImageArgs struct {
	Path    string `json:"path"`
	Driver  string `json:"driver"`
	Name    string `json:"name"`
	MaxSize int    `json:"max_size"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

func (s *Server) handleSlideAuxImage(args json.RawMessage) (interface{}, error) {
	var a slideAuxImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MaxSize == 0 {
		a.MaxSize = 1024
	}
	sl, err := s.openSlide(a.Path, a.Driver)
	if err != nil {
		return nil, err
	}
	aux, err := sl.AuxImage(a.Name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(sl.AuxImageNames(), ", "))
	}
	r := aux.Rect()
	block, err := aux.ReadBlock(slide.BlockRequest{Size: imaging.FitSize(r.Width, r.Height, a.MaxSize)})
	if err != nil {
		return nil, err
	}
	return imaging.EncodeBlock(block, a.Format, a.Quality)
}

// === Pixel Operation Handlers ===

type sceneSamplePixelArgs struct {
	sceneArgs
	X      int `json:"x"`
	Y      int `json:"y"`
	Z      int `json:"z"`
	T      int `json:"t"`
	Points []struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Label string `json:"label,omitempty"`
	} `json:"points"`
}

func (s *Server) handleSceneSamplePixel(args json.RawMessage) (interface{}, error) {
	var a sceneSamplePixelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, sc, err := s.scene(a.sceneArgs)
	if err != nil {
		return nil, err
	}
	if len(a.Points) == 0 {
		return imaging.SamplePixel(sc, a.X, a.Y, a.Z, a.T)
	}

	points := make([]imaging.LabeledPoint, len(a.Points))
	for i, p := range a.Points {
		points[i] = imaging.LabeledPoint{X: p.X, Y: p.Y, Label: p.Label}
	}
	samples, err := imaging.SamplePixels(sc, points, a.Z, a.T)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"samples": samples}, nil
}

type sceneMeasureDistanceArgs struct {
	sceneArgs
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (s *Server) handleSceneMeasureDistance(args json.RawMessage) (interface{}, error) {
	var a sceneMeasureDistanceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, sc, err := s.scene(a.sceneArgs)
	if err != nil {
		return nil, err
	}
	return imaging.MeasureDistance(sc, imaging.Point{X: a.X1, Y: a.Y1}, imaging.Point{X: a.X2, Y: a.Y2})
}

type imagesCompareArgs struct {
	PathA  string `json:"path_a"`
	PathB  string `json:"path_b"`
	SceneA int    `json:"scene_a"`
	SceneB int    `json:"scene_b"`
	Region *struct {
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	} `json:"region,omitempty"`
	Size int `json:"size"`
}

func (s *Server) handleImagesCompare(args json.RawMessage) (interface{}, error) {
	var a imagesCompareArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Size == 0 {
		a.Size = 512
	}
	_, sa, err := s.scene(sceneArgs{Path: a.PathA, Scene: a.SceneA})
	if err != nil {
		return nil, fmt.Errorf("first image: %w", err)
	}
	_, sb, err := s.scene(sceneArgs{Path: a.PathB, Scene: a.SceneB})
	if err != nil {
		return nil, fmt.Errorf("second image: %w", err)
	}

	var rect slide.Rect
	if a.Region != nil {
		rect = imaging.Region{X1: a.Region.X1, Y1: a.Region.Y1, X2: a.Region.X2, Y2: a.Region.Y2}.Rect()
	}
	return imaging.CompareScenes(sa, sb, rect, a.Size)
}

// === OCR Handlers ===

type labelOCRArgs struct {
	Path          string  `json:"path"`
	Driver        string  `json:"driver"`
	Language      string  `json:"language"`
	Rotate        int     `json:"rotate"`
	Upscale       float64 `json:"upscale"`
	BlocksOnly    bool    `json:"blocks_only"`
	MinConfidence float64 `json:"min_confidence"`
}

func (s *Server) handleLabelOCR(args json.RawMessage) (interface{}, error) {
	var a labelOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Language == "" {
		a.Language = s.cfg.OCR.Language
	}
	if a.Upscale == 0 {
		a.Upscale = 2
	}
	sl, err := s.openSlide(a.Path, a.Driver)
	if err != nil {
		return nil, err
	}
	opts := ocr.Options{
		Language:       a.Language,
		TessdataPrefix: s.cfg.OCR.TessdataPrefix,
		Rotate:         a.Rotate,
		Upscale:        a.Upscale,
	}
	if a.BlocksOnly {
		return ocr.DetectLabelRegions(sl, a.MinConfidence, opts)
	}
	return ocr.ExtractLabelText(sl, opts)
}

// === Export Handlers ===

type sceneConvertArgs struct {
	sceneArgs
	Output      string `json:"output"`
	Compression string `json:"compression"`
	Quality     int    `json:"quality"`
	TileSize    int    `json:"tile_size"`
	Levels      int    `json:"levels"`
	Z           int    `json:"z"`
	T           int    `json:"t"`
}

type convertResult struct {
	Output      string   `json:"output"`
	SizeBytes   int64    `json:"size_bytes"`
	Compression string   `json:"compression"`
	Tiles       int      `json:"tiles"`
	Associated  []string `json:"associated"`
	Seconds     float64  `json:"seconds"`
}

func (s *Server) handleSceneConvert(args json.RawMessage) (interface{}, error) {
	var a sceneConvertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Output == "" {
		return nil, fmt.Errorf("output is required")
	}
	p, err := s.cfg.ConvertParams()
	if err != nil {
		return nil, err
	}
	if a.Compression != "" {
		if p.Compression, err = slide.ParseCompression(a.Compression); err != nil {
			return nil, err
		}
	}
	if a.Quality > 0 {
		p.Quality = a.Quality
	}
	if a.TileSize > 0 {
		p.TileWidth, p.TileHeight = a.TileSize, a.TileSize
	}
	p.NumZoomLevels = a.Levels
	p.Z, p.T = a.Z, a.T

	sl, sc, err := s.scene(a.sceneArgs)
	if err != nil {
		return nil, err
	}
	aux, err := converter.AssociatedImages(sl)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(aux))
	for i, a := range aux {
		names[i] = a.Name
	}

	res := &convertResult{Output: a.Output, Compression: p.Compression.String(), Associated: names}
	p.Progress = func(done, total int) { res.Tiles = total }

	start := time.Now()
	if err := converter.ConvertFile(context.Background(), sc, a.Output, p, aux...); err != nil {
		return nil, err
	}
	res.Seconds = time.Since(start).Seconds()
	if st, err := os.Stat(a.Output); err == nil {
		res.SizeBytes = st.Size()
	}
	s.logger.Info("scene converted", "path", a.Path, "output", a.Output, "compression", res.Compression, "tiles", res.Tiles)
	return res, nil
}
