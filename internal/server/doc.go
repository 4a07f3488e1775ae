// Package server implements the MCP (Model Context Protocol) server for slide tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line, and exposes
// the slide engine to MCP clients. Slides are opened through a shared
// imaging.SlideCache, so repeated calls against the same file reuse the open
// handle.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Slide Information:
//   - slide_drivers: List driver IDs
//   - slide_open: Summarize scenes and auxiliary images
//   - scene_info: Full scene description and pyramid levels
//
// Region Operations:
//   - scene_read_block: Read and resample a region, optionally with a grid
//   - slide_aux_image: Return a label, macro or thumbnail image
//
// Pixel Operations:
//   - scene_sample_pixel: Raw channel values at one or more pixels
//   - scene_measure_distance: Distance in pixels and microns
//   - images_compare: Similarity of two scenes or regions
//
// OCR and Export:
//   - label_ocr: Read the slide label text, or only locate its text blocks
//   - scene_convert: Write a scene as a pyramidal SVS file
//
// Besides tools, the server answers initialize, ping and logging/setLevel,
// which changes the log level of the running process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string in data. Malformed lines get -32700,
// bad tools/call params -32602 and unknown methods -32601.
//
// # Usage
//
//	srv := server.New(cfg, logger)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
