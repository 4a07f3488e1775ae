package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// sceneProperties are the arguments every scene-level tool shares.
func sceneProperties(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"path": map[string]interface{}{
			"type":        "string",
			"description": "Absolute path to the slide file or Zarr directory",
		},
		"driver": map[string]interface{}{
			"type":        "string",
			"description": "Driver ID (SVS, ZARR, GDAL) or AUTO to detect. Default AUTO",
		},
		"scene": map[string]interface{}{
			"type":        "integer",
			"description": "Scene index (0-based). Default 0",
		},
		"aux": map[string]interface{}{
			"type":        "string",
			"description": "Name of an auxiliary image (e.g. Label, Macro) to use instead of a scene",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

func integerProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Slide Information
		{
			Name:        "slide_drivers",
			Description: "List the IDs of the available slide format drivers.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "slide_open",
			Description: "Open a slide and summarize its scenes (size, channels, Z slices, T frames, magnification, compression, pyramid levels) and auxiliary images.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file or Zarr directory",
					},
					"driver": map[string]interface{}{
						"type":        "string",
						"description": "Driver ID or AUTO. Default AUTO",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "scene_info",
			Description: "Get the full description of one scene: rectangle, channels with names and data types, resolution in meters per pixel, Z/T resolution, magnification and every pyramid level.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": sceneProperties(nil),
				"required":   []string{"path"},
			},
		},

		// Region Operations
		{
			Name:        "scene_read_block",
			Description: "Read a rectangular region of a scene, resampled to the requested size, and return it as base64-encoded PNG or JPEG. Coordinates are full-resolution scene pixels. Use this to zoom into areas that need detailed examination; large regions are served from the matching pyramid level.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sceneProperties(map[string]interface{}{
					"x1": integerProp("Left edge X coordinate (0-based)"),
					"y1": integerProp("Top edge Y coordinate (0-based)"),
					"x2": integerProp("Right edge X coordinate (exclusive). Omit for the scene width"),
					"y2": integerProp("Bottom edge Y coordinate (exclusive). Omit for the scene height"),
					"region": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"full", "top-left", "top-right", "bottom-left", "bottom-right", "top-half", "bottom-half", "left-half", "right-half", "center"},
						"description": "Named region, used instead of x1..y2",
					},
					"width":    integerProp("Output width. Omit to keep the aspect ratio"),
					"height":   integerProp("Output height. Omit to keep the aspect ratio"),
					"max_size": integerProp("Fit the output into a square of this size. Default 1024"),
					"channels": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "integer"},
						"description": "Channel indices in output order. Default all",
					},
					"z": integerProp("Z slice index. Default 0"),
					"t": integerProp("T frame index. Default 0"),
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"png", "jpeg"},
						"description": "Output encoding. Default png",
					},
					"quality":          integerProp("JPEG quality 1-100. Default 90"),
					"grid_spacing":     integerProp("Draw a grid every N scene pixels. Default none"),
					"show_coordinates": map[string]interface{}{"type": "boolean", "description": "Label grid intersections with scene coordinates"},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid color as #RRGGBB or #RRGGBBAA. Default #FF000080",
					},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "slide_aux_image",
			Description: "Return an auxiliary image of the slide (label, macro, thumbnail) as base64-encoded PNG or JPEG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file",
					},
					"driver": map[string]interface{}{
						"type":        "string",
						"description": "Driver ID or AUTO. Default AUTO",
					},
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Auxiliary image name as listed by slide_open",
					},
					"max_size": integerProp("Fit the output into a square of this size. Default 1024"),
					"format": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"png", "jpeg"},
						"description": "Output encoding. Default png",
					},
				},
				"required": []string{"path", "name"},
			},
		},

		// Pixel Operations
		{
			Name:        "scene_sample_pixel",
			Description: "Get the raw channel values at one or more scene pixels, plus hex/RGB/HSL for 8-bit color scenes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sceneProperties(map[string]interface{}{
					"x": integerProp("X coordinate (0-based, from left)"),
					"y": integerProp("Y coordinate (0-based, from top)"),
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
						"description": "Several points to sample instead of x/y",
					},
					"z": integerProp("Z slice index. Default 0"),
					"t": integerProp("T frame index. Default 0"),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "scene_measure_distance",
			Description: "Measure the distance between two scene pixels, in pixels and in microns when the scene resolution is known.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sceneProperties(map[string]interface{}{
					"x1": integerProp("First point X"),
					"y1": integerProp("First point Y"),
					"x2": integerProp("Second point X"),
					"y2": integerProp("Second point Y"),
				}),
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
		{
			Name:        "images_compare",
			Description: "Compare two scenes (or regions of them) and return a similarity score in [0,1] with squared difference and color distance. Both are resampled to a common size first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path_a":  map[string]interface{}{"type": "string", "description": "First slide"},
					"path_b":  map[string]interface{}{"type": "string", "description": "Second slide"},
					"scene_a": integerProp("Scene index in the first slide. Default 0"),
					"scene_b": integerProp("Scene index in the second slide. Default 0"),
					"region": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"x1": map[string]interface{}{"type": "integer"},
							"y1": map[string]interface{}{"type": "integer"},
							"x2": map[string]interface{}{"type": "integer"},
							"y2": map[string]interface{}{"type": "integer"},
						},
						"description": "Region compared in both scenes. Default the whole scenes",
					},
					"size": integerProp("Largest side of the compared rasters. Default 512"),
				},
				"required": []string{"path_a", "path_b"},
			},
		},

		// OCR Operations
		{
			Name:        "label_ocr",
			Description: "Read the text printed on the slide label (the Label auxiliary image) using Tesseract OCR. Returns the full text and word boxes in label coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the slide file",
					},
					"driver": map[string]interface{}{
						"type":        "string",
						"description": "Driver ID or AUTO. Default AUTO",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Default from config (eng)",
					},
					"rotate": map[string]interface{}{
						"type":        "integer",
						"enum":        []int{0, 90, 180, 270},
						"description": "Clockwise rotation applied before recognition",
					},
					"upscale": map[string]interface{}{
						"type":        "number",
						"description": "Enlargement factor for small labels. Default 2",
					},
					"blocks_only": map[string]interface{}{
						"type":        "boolean",
						"description": "Return only the text block boxes and their confidence, without recognized text",
					},
					"min_confidence": map[string]interface{}{
						"type":        "number",
						"description": "With blocks_only, drop blocks below this confidence (0.0 to 1.0). Default 0",
					},
				},
				"required": []string{"path"},
			},
		},

		// Export
		{
			Name:        "scene_convert",
			Description: "Write a scene as a pyramidal SVS file with JPEG, JPEG 2000, Deflate or no compression. The label and macro images are copied when present.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sceneProperties(map[string]interface{}{
					"output": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the .svs file to write",
					},
					"compression": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"Jpeg", "Jpeg2000", "Zlib", "Uncompressed"},
						"description": "Tile compression. Default from config (Jpeg)",
					},
					"quality":   integerProp("Lossy codec quality 1-100. 100 makes JPEG 2000 lossless"),
					"tile_size": integerProp("Tile edge, a multiple of 16. Default 256"),
					"levels":    integerProp("Number of pyramid levels. Default until one tile"),
					"z":         integerProp("Z slice to export. Default 0"),
					"t":         integerProp("T frame to export. Default 0"),
				}),
				"required": []string{"path", "output"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return resultResponse(req.ID, map[string]interface{}{
		"tools": GetToolDefinitions(),
	})
}
