package raster

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
)

type indexWeight struct {
	index  int
	weight float64
}

// precomputeWeights builds the contribution list of every destination sample
// along one axis. The kernel is stretched by the shrink factor so that every
// source sample contributes when reducing.
func precomputeWeights(dstSize, srcSize int, filter imaging.ResampleFilter) [][]indexWeight {
	du := float64(srcSize) / float64(dstSize)
	scale := du
	if scale < 1.0 {
		scale = 1.0
	}
	ru := math.Ceil(scale * filter.Support)

	out := make([][]indexWeight, dstSize)
	tmp := make([]indexWeight, 0, dstSize*int(ru+2)*2)

	for v := 0; v < dstSize; v++ {
		fu := (float64(v)+0.5)*du - 0.5

		begin := int(math.Ceil(fu - ru))
		if begin < 0 {
			begin = 0
		}
		end := int(math.Floor(fu + ru))
		if end > srcSize-1 {
			end = srcSize - 1
		}

		var sum float64
		for u := begin; u <= end; u++ {
			w := filter.Kernel((float64(u) - fu) / scale)
			if w != 0 {
				sum += w
				tmp = append(tmp, indexWeight{index: u, weight: w})
			}
		}
		if sum != 0 {
			for i := range tmp {
				tmp[i].weight /= sum
			}
		}

		out[v] = tmp
		tmp = tmp[len(tmp):]
	}
	return out
}

// filterFor picks area averaging when reducing and linear interpolation when
// enlarging.
func filterFor(dstSize, srcSize int) imaging.ResampleFilter {
	if dstSize < srcSize {
		return imaging.Box
	}
	return imaging.Linear
}

// Resize resamples every plane of r to width x height. Channels and planes are
// processed independently; Z and T are never mixed. When the size already
// matches, a copy is returned.
func Resize(r *Raster, width, height int) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	if r.Width == 0 || r.Height == 0 {
		return nil, fmt.Errorf("cannot resize empty raster")
	}
	if width == r.Width && height == r.Height {
		return r.Clone(), nil
	}

	out, err := NewStack(width, height, r.Channels, r.Slices, r.Frames, r.Type)
	if err != nil {
		return nil, err
	}

	var xWeights, yWeights [][]indexWeight
	if width != r.Width {
		xWeights = precomputeWeights(width, r.Width, filterFor(width, r.Width))
	}
	if height != r.Height {
		yWeights = precomputeWeights(height, r.Height, filterFor(height, r.Height))
	}

	for t := 0; t < r.Frames; t++ {
		for z := 0; z < r.Slices; z++ {
			resizePlane(r, out, z, t, xWeights, yWeights)
		}
	}
	return out, nil
}

// resizePlane runs the horizontal pass into a float buffer then the vertical
// pass into dst, splitting rows across goroutines.
func resizePlane(src, dst *Raster, z, t int, xWeights, yWeights [][]indexWeight) {
	c := src.Channels
	tmpW := dst.Width
	tmp := make([]float64, tmpW*src.Height*c)

	parallel(src.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < tmpW; x++ {
				for ch := 0; ch < c; ch++ {
					var v float64
					if xWeights == nil {
						v = src.AtPlane(x, y, ch, z, t)
					} else {
						for _, iw := range xWeights[x] {
							v += src.AtPlane(iw.index, y, ch, z, t) * iw.weight
						}
					}
					tmp[(y*tmpW+x)*c+ch] = v
				}
			}
		}
	})

	parallel(dst.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < tmpW; x++ {
				for ch := 0; ch < c; ch++ {
					var v float64
					if yWeights == nil {
						v = tmp[(y*tmpW+x)*c+ch]
					} else {
						for _, iw := range yWeights[y] {
							v += tmp[(iw.index*tmpW+x)*c+ch] * iw.weight
						}
					}
					dst.SetPlane(x, y, ch, z, t, v)
				}
			}
		}
	})
}

// parallel splits [0,n) into contiguous chunks, one per CPU.
func parallel(n int, fn func(start, end int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
