package tiff

import "github.com/ironsheep/slide-tools-mcp/internal/slide"

// SlideCompression maps a TIFF compression tag to the engine's compression
// enum. Unrecognized tags map to CompressionUnknown.
func SlideCompression(tag int) slide.Compression {
	switch tag {
	case CompressionNone:
		return slide.Uncompressed
	case CompressionHuffmanRL:
		return slide.HuffmanRL
	case CompressionCCITTT4:
		return slide.CCITTT4
	case CompressionCCITTT6:
		return slide.CCITTT6
	case CompressionLZW:
		return slide.LZW
	case CompressionOldJPEG:
		return slide.JpegOld
	case CompressionJPEG:
		return slide.Jpeg
	case CompressionDeflate:
		return slide.Zlib
	case CompressionJBIGBW:
		return slide.JBIG85
	case CompressionJBIGColor:
		return slide.JBIG43
	case CompressionNextRLE:
		return slide.NextRLE
	case CompressionPackBits:
		return slide.PackBits
	case CompressionPKZIP:
		return slide.PKZIP
	case CompressionJ2KYCbCr, CompressionJ2KRGB, CompressionJP2000:
		return slide.Jpeg2000
	case CompressionJBIG:
		return slide.JBIG
	case CompressionNikonNEF:
		return slide.NikonNEF
	case CompressionJBIG2:
		return slide.JBIG2
	}
	return slide.CompressionUnknown
}

// TagFor is the inverse of SlideCompression for the codecs EncodeTile can
// produce. ok is false for anything else.
func TagFor(c slide.Compression) (tag int, ok bool) {
	switch c {
	case slide.Uncompressed:
		return CompressionNone, true
	case slide.Jpeg:
		return CompressionJPEG, true
	case slide.Jpeg2000:
		return CompressionJ2KRGB, true
	case slide.Zlib:
		return CompressionDeflate, true
	}
	return 0, false
}
