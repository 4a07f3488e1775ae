package slide

import (
	"fmt"
	"strings"
)

// Compression identifies how a scene's pixel data is encoded on disk. The
// numeric values are stable and must not be reordered.
type Compression int

const (
	CompressionUnknown Compression = iota
	Uncompressed
	Jpeg
	JpegXR
	Png
	Jpeg2000
	LZW
	HuffmanRL
	CCITTT4
	CCITTT6
	JpegOld
	Zlib
	JBIG85
	JBIG43
	NextRLE
	PackBits
	ThunderScanRLE
	RasterPadding
	RLELW
	RLEHC
	RLEBL
	PKZIP
	KodakDCS
	JBIG
	NikonNEF
	JBIG2
	GIF
	BIGGIF
	RLE
	BMP
	JpegLossless
)

var compressionNames = [...]string{
	"Unknown", "Uncompressed", "Jpeg", "JpegXR", "Png", "Jpeg2000", "LZW",
	"HuffmanRL", "CCITT_T4", "CCITT_T6", "JpegOld", "Zlib", "JBIG85", "JBIG43",
	"NextRLE", "PackBits", "ThunderScanRLE", "RasterPadding", "RLE_LW",
	"RLE_HC", "RLE_BL", "PKZIP", "KodakDCS", "JBIG", "NikonNEF", "JBIG2",
	"GIF", "BIGGIF", "RLE", "BMP", "JpegLossless",
}

func (c Compression) String() string {
	if c >= 0 && int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// ParseCompression accepts the names produced by String, case-insensitively.
func ParseCompression(s string) (Compression, error) {
	for i, name := range compressionNames {
		if strings.EqualFold(name, s) {
			return Compression(i), nil
		}
	}
	return CompressionUnknown, fmt.Errorf("unknown compression %q", s)
}

// MarshalText encodes the compression by name.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts any name understood by ParseCompression.
func (c *Compression) UnmarshalText(b []byte) error {
	v, err := ParseCompression(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
