package slide

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// NamedSource is an auxiliary image exposed by a driver under a unique name.
type NamedSource struct {
	Name   string
	Source Source
}

// Contents is what a driver produces when it opens a file.
type Contents struct {
	// Scenes in the order the format defines them.
	Scenes []Source

	// Aux lists auxiliary images (label, macro, thumbnail) in driver order.
	Aux []NamedSource

	// Metadata is the raw, format-specific metadata text.
	Metadata string

	// Closers release the file handles backing the sources.
	Closers []io.Closer
}

// Slide is an opened container file. It owns the underlying handles and
// invalidates every Scene it handed out when closed.
type Slide struct {
	path     string
	driver   string
	metadata string
	sources  []Source
	aux      map[string]Source
	auxNames []string
	closers  []io.Closer
	opts     options

	mu     sync.RWMutex
	closed bool

	sceneMu sync.Mutex
	scenes  map[Source]*Scene
}

// New assembles a Slide from driver output. Duplicate auxiliary names are
// rejected.
func New(path, driver string, c *Contents, opts ...Option) (*Slide, error) {
	s := &Slide{
		path:     path,
		driver:   driver,
		metadata: c.Metadata,
		sources:  c.Scenes,
		aux:      make(map[string]Source, len(c.Aux)),
		closers:  c.Closers,
		opts:     applyOptions(opts),
		scenes:   make(map[Source]*Scene),
	}
	for _, a := range c.Aux {
		if _, dup := s.aux[a.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate auxiliary image %q", ErrOpen, a.Name)
		}
		s.aux[a.Name] = a.Source
		s.auxNames = append(s.auxNames, a.Name)
	}
	return s, nil
}

// FilePath returns the path the slide was opened from.
func (s *Slide) FilePath() string { return s.path }

// Driver returns the ID of the driver that opened the slide.
func (s *Slide) Driver() string { return s.driver }

// RawMetadata returns the format-specific metadata text, possibly empty.
func (s *Slide) RawMetadata() string { return s.metadata }

// NumScenes returns the number of scenes.
func (s *Slide) NumScenes() int { return len(s.sources) }

// Scene returns scene i (0-based).
func (s *Slide) Scene(i int) (*Scene, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	if i < 0 || i >= len(s.sources) {
		return nil, fmt.Errorf("%w: scene %d of %d", ErrIndexOutOfRange, i, len(s.sources))
	}
	return s.wrap(s.sources[i]), nil
}

// NumAuxImages returns the number of auxiliary images.
func (s *Slide) NumAuxImages() int { return len(s.auxNames) }

// AuxImageNames returns auxiliary image names in driver order.
func (s *Slide) AuxImageNames() []string {
	return append([]string(nil), s.auxNames...)
}

// AuxImage returns the auxiliary image registered under name as a Scene.
func (s *Slide) AuxImage(name string) (*Scene, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()
	src, ok := s.aux[name]
	if !ok {
		return nil, fmt.Errorf("%w: auxiliary image %q", ErrNameNotFound, name)
	}
	return s.wrap(src), nil
}

// Close releases the file handles. Scenes obtained from the slide fail with
// ErrStaleHandle afterwards. Closing twice is a no-op.
func (s *Slide) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// wrap returns the Scene for src, creating it on first use.
func (s *Slide) wrap(src Source) *Scene {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()
	if sc, ok := s.scenes[src]; ok {
		return sc
	}
	sc := &Scene{slide: s, src: src}
	s.scenes[src] = sc
	return sc
}

// acquire holds the slide open for the duration of an operation.
func (s *Slide) acquire() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStaleHandle
	}
	return nil
}

func (s *Slide) release() { s.mu.RUnlock() }
