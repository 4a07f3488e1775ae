package zarr

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// ErrNotFound reports a key that is absent from a store. Missing chunks are
// not an error for readers: they take the array's fill value.
var ErrNotFound = errors.New("not found")

// Store is a read-only key/value view over a zarr hierarchy. Keys use "/" as
// separator regardless of the host OS.
type Store interface {
	Get(key string) (io.ReadCloser, error)
	// List returns the immediate children of prefix.
	List(prefix string) ([]string, error)
}

// LocalStore serves a zarr hierarchy from a directory.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore opens base, which must be an existing directory.
func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(base)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", base)
	}
	return &LocalStore{base: base}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("key %q escapes the store", key)
	}
	return filepath.Join(s.base, clean), nil
}

func (s *LocalStore) Get(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

func (s *LocalStore) List(prefix string) ([]string, error) {
	p, err := s.path(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func joinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" && p != "." {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

func readKey(s Store, key string) ([]byte, error) {
	rc, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
