package raster

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// Compare returns a similarity score in [0,1] for two rasters of identical
// shape: the Pearson correlation of their samples clamped at zero. Two
// constant rasters score 1 when equal and 0 otherwise, as does a constant
// raster against a varying one.
func Compare(a, b *Raster) (float64, error) {
	if err := checkComparable(a, b); err != nil {
		return 0, err
	}
	return correlation(a.Samples(), b.Samples()), nil
}

func checkComparable(a, b *Raster) error {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels ||
		a.Slices != b.Slices || a.Frames != b.Frames {
		return fmt.Errorf("%w: %dx%dx%d (z=%d t=%d) vs %dx%dx%d (z=%d t=%d)", ErrShapeMismatch,
			a.Width, a.Height, a.Channels, a.Slices, a.Frames,
			b.Width, b.Height, b.Channels, b.Slices, b.Frames)
	}
	if len(a.Pix) == 0 {
		return fmt.Errorf("%w: empty rasters", ErrShapeMismatch)
	}
	return nil
}

func correlation(x, y []float64) float64 {
	if floatsEqual(x, y) {
		return 1
	}
	if len(x) < 2 {
		return 0
	}
	vx := stat.Variance(x, nil)
	vy := stat.Variance(y, nil)
	if vx == 0 || vy == 0 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// Similarity carries the individual metrics behind a comparison.
type Similarity struct {
	// Score is the value returned by Compare.
	Score float64 `json:"score"`

	// SquaredDifference is the mean squared difference divided by the
	// square of the sample range, 0 for identical inputs.
	SquaredDifference float64 `json:"squared_difference"`

	// ColorDistance is the mean CIEDE2000 distance between pixels. Only
	// computed for 8-bit rasters with 3 or 4 channels; -1 otherwise.
	ColorDistance float64 `json:"color_distance"`
}

// CompareDetailed computes Compare together with a normalized squared
// difference and, for color rasters, a perceptual distance.
func CompareDetailed(a, b *Raster) (*Similarity, error) {
	if err := checkComparable(a, b); err != nil {
		return nil, err
	}
	xs, ys := a.Samples(), b.Samples()
	res := &Similarity{
		Score:         correlation(xs, ys),
		ColorDistance: -1,
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for i := range xs {
		d := xs[i] - ys[i]
		sum += d * d
		lo = math.Min(lo, math.Min(xs[i], ys[i]))
		hi = math.Max(hi, math.Max(xs[i], ys[i]))
	}
	if span := hi - lo; span > 0 {
		res.SquaredDifference = sum / float64(len(xs)) / (span * span)
	}

	if a.Type == Byte && b.Type == Byte && a.Channels >= 3 {
		res.ColorDistance = meanColorDistance(a, b)
	}
	return res, nil
}

func meanColorDistance(a, b *Raster) float64 {
	c := a.Channels
	n := len(a.Pix) / c
	var total float64
	for p := 0; p < n; p++ {
		i := p * c
		ca := colorful.Color{R: float64(a.Pix[i]) / 255, G: float64(a.Pix[i+1]) / 255, B: float64(a.Pix[i+2]) / 255}
		cb := colorful.Color{R: float64(b.Pix[i]) / 255, G: float64(b.Pix[i+1]) / 255, B: float64(b.Pix[i+2]) / 255}
		total += ca.DistanceCIEDE2000(cb)
	}
	return total / float64(n)
}

func floatsEqual(x, y []float64) bool {
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
