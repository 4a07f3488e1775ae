package slide

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// tileJob is one tile of one Z/T plane that intersects the requested region.
type tileJob struct {
	index int
	rect  image.Rectangle
	z, t  int
	out   *raster.Raster
	err   error
}

// compose assembles the level-space region from every intersecting tile.
// Tiles are decoded on a bounded pool but pasted in job order, so overlapping
// tiles resolve the same way on every call.
func (s *Scene) compose(plan *blockPlan, li int, lvl Level, region image.Rectangle) (*raster.Raster, error) {
	block, err := raster.NewStack(region.Dx(), region.Dy(), len(plan.channels), plan.z.Len(), plan.t.Len(), plan.dtype)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var jobs []*tileJob
	for t := 0; t < plan.t.Len(); t++ {
		for z := 0; z < plan.z.Len(); z++ {
			for idx := 0; idx < lvl.NumTiles(); idx++ {
				tr := lvl.TileRect(idx)
				if !tr.Overlaps(region) {
					continue
				}
				jobs = append(jobs, &tileJob{index: idx, rect: tr, z: z, t: t})
			}
		}
	}

	s.decodeTiles(plan, li, jobs)

	for _, j := range jobs {
		if j.err != nil {
			return nil, j.err
		}
		if j.out == nil {
			continue
		}
		if err := block.Paste(j.out, j.rect.Min.X-region.Min.X, j.rect.Min.Y-region.Min.Y, j.z, j.t); err != nil {
			return nil, fmt.Errorf("%w: tile %d: %w", ErrDecode, j.index, err)
		}
	}
	return block, nil
}

// decodeTiles fills in out/err of every job using at most the configured
// number of goroutines.
func (s *Scene) decodeTiles(plan *blockPlan, li int, jobs []*tileJob) {
	workers := s.slide.opts.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	queue := make(chan *tileJob)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				j.out, j.err = s.decodeTile(plan, li, j)
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()
}

func (s *Scene) decodeTile(plan *blockPlan, li int, j *tileJob) (*raster.Raster, error) {
	tile, err := s.src.ReadTile(li, j.index, plan.z.First+j.z, plan.t.First+j.t)
	if err != nil {
		if errors.Is(err, ErrStaleHandle) {
			return nil, err
		}
		s.slide.opts.logger.Warn("tile decode failed", "scene", s.src.Info().Name, "level", li, "tile", j.index, "error", err)
		return nil, fmt.Errorf("%w: level %d tile %d: %w", ErrDecode, li, j.index, err)
	}
	if tile == nil {
		return nil, nil
	}
	if tile.Type != plan.dtype {
		return nil, fmt.Errorf("%w: tile %d holds %s samples, scene declares %s", ErrDecode, j.index, tile.Type, plan.dtype)
	}
	out, err := tile.SelectChannels(plan.channels)
	if err != nil {
		return nil, fmt.Errorf("%w: tile %d: %w", ErrDecode, j.index, err)
	}
	return out, nil
}
