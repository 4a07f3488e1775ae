package slide

import (
	"fmt"
	"os"
	"sync"
)

// Handle is a shareable, positioned-read file handle. Concurrent ReadAt calls
// proceed in parallel; Close waits for in-flight reads and makes later ones
// fail with ErrStaleHandle.
type Handle struct {
	mu   sync.RWMutex
	f    *os.File
	path string
	size int64
}

// OpenHandle opens path for reading.
func OpenHandle(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpen, path)
	}
	return &Handle{f: f, path: path, size: st.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.f == nil {
		return 0, ErrStaleHandle
	}
	return h.f.ReadAt(p, off)
}

// Size returns the file size observed at open time.
func (h *Handle) Size() int64 { return h.size }

// Path returns the file path.
func (h *Handle) Path() string { return h.path }

// Close releases the file. It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}
