// Package slide implements the format-independent slide model and the region
// extraction engine.
//
// A Slide is an opened container file produced by a Driver. It exposes an
// ordered list of Scenes plus optional named auxiliary images (label, macro,
// thumbnail), which are Scenes as well. Drivers only describe their data
// through the Source interface: scene metadata, a resolution pyramid and
// per-tile decoding. Everything else lives here.
//
// # Reading blocks
//
// Scene.ReadBlock resolves a BlockRequest in these steps:
//   - default and clamp the region to the scene, derive the output size
//   - validate channel indices and the Z/T ranges
//   - pick the coarsest pyramid level that still meets the requested zoom
//   - decode the intersecting tiles on a bounded worker pool
//   - paste them in tile order and resample to the output size
//
// Tiles missing from the file are rendered as zeros. Corrupted tiles fail the
// read with ErrDecode.
//
// # Lifetime
//
// Slide.Close releases file handles; reads already in progress finish first
// and every later call on the slide or its scenes returns ErrStaleHandle.
package slide
