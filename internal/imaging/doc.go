// Package imaging holds the presentation helpers shared by the MCP server,
// the HTTP API and the command line tool.
//
// It sits between the slide engine and the outer surfaces: it keeps slides
// open across requests, turns scene regions into PNG or JPEG payloads, and
// samples individual pixels.
//
// # Coordinate System
//
// Coordinates are scene pixels at full resolution, 0-based from the
// top-left corner. Regions are given by corners: (x1,y1) is inclusive and
// (x2,y2) exclusive.
//
// # Thread Safety
//
// SlideCache is safe for concurrent use. Requests that run alongside others
// pin their slide with Acquire; an evicted slide is closed when the last
// holder releases it.
//
// # Color Representation
//
// Pixel samples always carry the raw channel values. 8-bit gray and RGB
// scenes additionally get a display color as hex, RGB and HSL.
package imaging
