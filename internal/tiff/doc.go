// Package tiff reads and writes the tiled TIFF containers that whole-slide
// formats such as Aperio SVS are built on.
//
// The reader parses classic and BigTIFF directory chains in either byte order
// and decodes individual tiles or strips on demand through an io.ReaderAt, so
// many tiles can be decoded concurrently from one open file. Supported tile
// codecs are uncompressed, LZW, Deflate, PackBits, Zstandard, JPEG (with
// shared JPEGTables) and JPEG 2000, including the Aperio 33003/33005 variants.
//
// The writer produces little-endian classic TIFF files with one directory per
// Page and is used to export scenes as pyramidal SVS files.
package tiff
