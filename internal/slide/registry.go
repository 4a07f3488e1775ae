package slide

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// AutoDriver asks Registry.Open to pick the driver by probing the file.
const AutoDriver = "AUTO"

// Driver recognizes and opens one family of container formats.
type Driver interface {
	// ID is the stable, upper-case identifier of the driver.
	ID() string

	// Probe reports whether path looks like a file this driver can open.
	// It must be cheap and must not fail loudly.
	Probe(path string) bool

	// Open parses path into scenes. Content the driver cannot interpret is
	// reported with an error wrapping ErrOpen.
	Open(path string) (*Contents, error)
}

// Registry is the set of drivers available to open slides. Drivers are
// probed in registration order when the AUTO driver is requested.
type Registry struct {
	mu      sync.RWMutex
	drivers []Driver
	opts    []Option
}

// NewRegistry creates an empty registry. opts are applied to every slide it
// opens.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{opts: opts}
}

// Register adds d. IDs must be unique.
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.drivers {
		if existing.ID() == d.ID() {
			return fmt.Errorf("driver %q already registered", d.ID())
		}
	}
	r.drivers = append(r.drivers, d)
	return nil
}

// IDs returns the registered driver IDs in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.drivers))
	for i, d := range r.drivers {
		ids[i] = d.ID()
	}
	sort.Strings(ids)
	return ids
}

// Driver looks up a driver by ID.
func (r *Registry) Driver(id string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.drivers {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, id)
}

// Detect returns the first driver whose probe accepts path.
func (r *Registry) Detect(path string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.drivers {
		if d.Probe(path) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no driver recognizes %s", ErrOpen, path)
}

// Open opens path with the driver named id, or with the first probing driver
// when id is AUTO (case-insensitive).
func (r *Registry) Open(path, id string) (*Slide, error) {
	var (
		d   Driver
		err error
	)
	if strings.EqualFold(id, AutoDriver) {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpen, statErr)
		}
		d, err = r.Detect(path)
	} else {
		d, err = r.Driver(id)
	}
	if err != nil {
		return nil, err
	}

	contents, err := d.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := New(path, d.ID(), contents, r.opts...)
	if err != nil {
		for _, c := range contents.Closers {
			c.Close()
		}
		return nil, err
	}
	s.opts.logger.Debug("slide opened", "path", path, "driver", d.ID(), "scenes", s.NumScenes(), "aux", s.NumAuxImages())
	return s, nil
}
