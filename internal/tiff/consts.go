package tiff

// Byte order markers of the file header.
const (
	leHeader    = "II\x2A\x00"
	beHeader    = "MM\x00\x2A"
	leBigHeader = "II\x2B\x00"
	beBigHeader = "MM\x00\x2B"
)

// Field types.
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtIFD       = 13
	dtLong8     = 16
	dtSLong8    = 17
	dtIFD8      = 18
)

func typeSize(t uint16) int {
	switch t {
	case dtByte, dtASCII, dtSByte, dtUndefined:
		return 1
	case dtShort, dtSShort:
		return 2
	case dtLong, dtSLong, dtFloat, dtIFD:
		return 4
	case dtRational, dtSRational, dtDouble, dtLong8, dtSLong8, dtIFD8:
		return 8
	}
	return 0
}

// Tags.
const (
	tNewSubfileType   = 254
	tImageWidth       = 256
	tImageLength      = 257
	tBitsPerSample    = 258
	tCompression      = 259
	tPhotometric      = 262
	tImageDescription = 270
	tStripOffsets     = 273
	tSamplesPerPixel  = 277
	tRowsPerStrip     = 278
	tStripByteCounts  = 279
	tPlanarConfig     = 284
	tPredictor        = 317
	tTileWidth        = 322
	tTileLength       = 323
	tTileOffsets      = 324
	tTileByteCounts   = 325
	tSampleFormat     = 339
	tJPEGTables       = 347
)

// Compression tag values understood by the reader and writer.
const (
	CompressionNone      = 1
	CompressionHuffmanRL = 2
	CompressionCCITTT4   = 3
	CompressionCCITTT6   = 4
	CompressionLZW       = 5
	CompressionOldJPEG   = 6
	CompressionJPEG      = 7
	CompressionDeflate   = 8
	CompressionJBIGBW    = 9
	CompressionJBIGColor = 10
	CompressionNextRLE   = 0x7ffe
	CompressionPackBits  = 0x8005
	CompressionPKZIP     = 0x80b2
	CompressionJ2KYCbCr  = 33003
	CompressionJ2KRGB    = 33005
	CompressionJBIG      = 0x8765
	CompressionJP2000    = 0x8798
	CompressionNikonNEF  = 0x8799
	CompressionJBIG2     = 0x879b
	CompressionZstd      = 50000
)

// Photometric interpretations.
const (
	PhotometricMinIsBlack = 1
	PhotometricRGB        = 2
	PhotometricYCbCr      = 6
)

// Sample formats.
const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// Predictors.
const (
	predictorNone       = 1
	predictorHorizontal = 2
)

// Subfile types.
const (
	SubfileReduced = 1
)
