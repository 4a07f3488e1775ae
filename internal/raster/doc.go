// Package raster holds the in-memory pixel container shared by the slide
// engine, its drivers and every output surface.
//
// A Raster is a dense block of samples addressed by (x, y, channel, z, t)
// where z indexes focal slices and t time frames. Samples are stored
// little-endian in a single byte slice in [t][z][y][x][c] order so that one
// Z/T plane is contiguous and interleaved like a conventional image.
//
// # Resampling
//
// Resize is separable and channel independent. When an axis shrinks, each
// output sample is the area average of the source samples it covers (box
// kernel stretched by the reduction factor). When an axis grows, samples are
// linearly interpolated. Planes are never mixed.
//
// # Comparison
//
// Compare scores two equally shaped rasters in [0,1] using normalized
// cross-correlation; CompareDetailed adds a normalized squared difference and
// a perceptual CIEDE2000 color distance.
package raster
