package imaging

import (
	"fmt"
	"math"

	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Point represents a scene pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DistanceResult contains measurement information
type DistanceResult struct {
	DistancePixels  float64 `json:"distance_pixels"`
	DeltaX          int     `json:"delta_x"`
	DeltaY          int     `json:"delta_y"`
	AngleDegrees    float64 `json:"angle_degrees"`
	DistanceMicrons float64 `json:"distance_microns,omitempty"`
}

// MeasureDistance measures between two scene points. When the scene knows
// its pixel size the physical distance is reported as well.
func MeasureDistance(scene *slide.Scene, p1, p2 Point) (*DistanceResult, error) {
	r := scene.Rect()
	for _, p := range []Point{p1, p2} {
		if p.X < 0 || p.Y < 0 || p.X >= r.Width || p.Y >= r.Height {
			return nil, fmt.Errorf("%w: point (%d,%d) outside scene bounds %dx%d", slide.ErrInvalidRegion, p.X, p.Y, r.Width, r.Height)
		}
	}

	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	distance := math.Hypot(float64(dx), float64(dy))
	// 0 = horizontal right, 90 = down
	angle := math.Atan2(float64(dy), float64(dx)) * 180 / math.Pi

	res := &DistanceResult{
		DistancePixels: math.Round(distance*100) / 100,
		DeltaX:         dx,
		DeltaY:         dy,
		AngleDegrees:   math.Round(angle*10) / 10,
	}
	if rs := scene.Resolution(); rs.X > 0 && rs.Y > 0 {
		meters := math.Hypot(float64(dx)*rs.X, float64(dy)*rs.Y)
		res.DistanceMicrons = math.Round(meters*1e6*100) / 100
	}
	return res, nil
}
