package zarr

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// CompressionMeta is the compressor object of an array's metadata.
type CompressionMeta struct {
	ID    string `json:"id"`
	Level int    `json:"level,omitempty"`
}

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// supportedCompressor reports whether chunks written with id can be read.
func supportedCompressor(id string) bool {
	switch id {
	case "", "zlib", "gzip", "bz2", "zstd":
		return true
	}
	return false
}

// decompress returns the raw chunk bytes. A nil compressor means the chunk is
// stored as is.
func decompress(m *CompressionMeta, data []byte) ([]byte, error) {
	if m == nil || m.ID == "" {
		return data, nil
	}
	var r io.Reader
	switch m.ID {
	case "zlib":
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case "gzip":
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case "bz2":
		r = bzip2.NewReader(bytes.NewReader(data))
	case "zstd":
		zstdOnce.Do(func() {
			zstdDecoder, zstdErr = zstd.NewReader(nil)
		})
		if zstdErr != nil {
			return nil, zstdErr
		}
		return zstdDecoder.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unsupported compressor %q", m.ID)
	}
	return io.ReadAll(r)
}
