package imaging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// SlideCache keeps recently used slides open so that repeated requests
// against the same file do not re-parse its container.
//
// Slides are keyed by the path string given to Open. When more than the
// configured number of slides are open, the least recently used one is
// dropped from the cache. A dropped slide is closed once every Acquire on
// it has been released; slides obtained through Open are not pinned and
// their Scenes fail with slide.ErrStaleHandle after eviction.
//
// SlideCache is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	cache := imaging.NewSlideCache(drivers.Default(nil), 8)
//	s, release, err := cache.Acquire("/data/case.svs", slide.AutoDriver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer release()
//	scene, _ := s.Scene(0)
type SlideCache struct {
	registry *slide.Registry
	max      int

	mu     sync.Mutex
	slides map[string]*cacheEntry
	order  []string // least recently used first
}

// cacheEntry counts the requests holding a slide. An evicted entry with
// refs > 0 is closed by the last release.
type cacheEntry struct {
	slide   *slide.Slide
	refs    int
	evicted bool
}

// NewSlideCache creates an empty cache opening slides through registry.
// maxSlides below 1 keeps a single slide.
func NewSlideCache(registry *slide.Registry, maxSlides int) *SlideCache {
	if maxSlides < 1 {
		maxSlides = 1
	}
	return &SlideCache{
		registry: registry,
		max:      maxSlides,
		slides:   make(map[string]*cacheEntry),
	}
}

// Registry returns the registry slides are opened with.
func (c *SlideCache) Registry() *slide.Registry { return c.registry }

// Open returns the cached slide for path or opens it with the given driver
// ID. An empty driver means AUTO. A cached slide opened by a different driver
// than the one explicitly requested is reopened.
func (c *SlideCache) Open(path, driver string) (*slide.Slide, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookupLocked(path, driver)
	if err != nil {
		return nil, err
	}
	return e.slide, nil
}

// Acquire is Open with the slide pinned until release is called: eviction
// by other callers defers closing it. release may be called more than once.
func (c *SlideCache) Acquire(path, driver string) (s *slide.Slide, release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, err := c.lookupLocked(path, driver)
	if err != nil {
		return nil, nil, err
	}
	e.refs++
	var once sync.Once
	return e.slide, func() { once.Do(func() { c.release(e) }) }, nil
}

func (c *SlideCache) release(e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refs--
	if e.refs == 0 && e.evicted {
		e.slide.Close()
	}
}

func (c *SlideCache) lookupLocked(path, driver string) (*cacheEntry, error) {
	if driver == "" {
		driver = slide.AutoDriver
	}
	if e, ok := c.slides[path]; ok {
		if strings.EqualFold(driver, slide.AutoDriver) || e.slide.Driver() == driver {
			c.touch(path)
			return e, nil
		}
		c.evictLocked(path)
	}

	s, err := c.registry.Open(path, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open slide: %w", err)
	}
	e := &cacheEntry{slide: s}
	c.slides[path] = e
	c.order = append(c.order, path)
	for len(c.order) > c.max {
		c.evictLocked(c.order[0])
	}
	return e, nil
}

func (c *SlideCache) touch(path string) {
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, path)
}

func (c *SlideCache) evictLocked(path string) {
	e, ok := c.slides[path]
	if !ok {
		return
	}
	delete(c.slides, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	e.evicted = true
	if e.refs == 0 {
		e.slide.Close()
	}
}

// Evict drops the slide opened for path, closing it as soon as no Acquire
// holds it. Unknown paths are ignored.
func (c *SlideCache) Evict(path string) {
	c.mu.Lock()
	c.evictLocked(path)
	c.mu.Unlock()
}

// Clear evicts every cached slide.
func (c *SlideCache) Clear() {
	c.mu.Lock()
	for len(c.order) > 0 {
		c.evictLocked(c.order[0])
	}
	c.mu.Unlock()
}

// Len reports the number of open slides.
func (c *SlideCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slides)
}

// SceneSummary is the per-scene part of SlideInfo.
type SceneSummary struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Channels      int     `json:"channels"`
	DataType      string  `json:"data_type"`
	NumZSlices    int     `json:"num_z_slices"`
	NumTFrames    int     `json:"num_t_frames"`
	Magnification float64 `json:"magnification"`
	Compression   string  `json:"compression"`
	Levels        int     `json:"levels"`
}

// SlideInfo summarizes an opened slide.
type SlideInfo struct {
	Path      string         `json:"path"`
	Driver    string         `json:"driver"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Scenes    []SceneSummary `json:"scenes"`
	AuxImages []string       `json:"aux_images"`
}

// LoadSlideInfo opens path through the cache and summarizes its scenes.
// SizeBytes is left at zero for directory containers such as Zarr stores.
func LoadSlideInfo(cache *SlideCache, path, driver string) (*SlideInfo, error) {
	s, release, err := cache.Acquire(path, driver)
	if err != nil {
		return nil, err
	}
	defer release()
	info := &SlideInfo{
		Path:      s.FilePath(),
		Driver:    s.Driver(),
		AuxImages: s.AuxImageNames(),
	}
	if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
		info.SizeBytes = st.Size()
	}
	for i := 0; i < s.NumScenes(); i++ {
		scene, err := s.Scene(i)
		if err != nil {
			return nil, err
		}
		sum, err := Summarize(i, scene)
		if err != nil {
			return nil, err
		}
		info.Scenes = append(info.Scenes, sum)
	}
	return info, nil
}

// Summarize describes one scene.
func Summarize(index int, scene *slide.Scene) (SceneSummary, error) {
	si, err := scene.Info()
	if err != nil {
		return SceneSummary{}, err
	}
	levels, err := scene.Levels()
	if err != nil {
		return SceneSummary{}, err
	}
	sum := SceneSummary{
		Index:         index,
		Name:          si.Name,
		Width:         si.Rect.Width,
		Height:        si.Rect.Height,
		Channels:      len(si.Channels),
		NumZSlices:    si.NumZSlices,
		NumTFrames:    si.NumTFrames,
		Magnification: si.Magnification,
		Compression:   si.Compression.String(),
		Levels:        len(levels),
	}
	if len(si.Channels) > 0 {
		sum.DataType = si.Channels[0].Type.String()
	}
	return sum, nil
}
