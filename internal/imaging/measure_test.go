package imaging

import (
	"errors"
	"math"
	"testing"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

func measuredScene(t *testing.T, res slide.Resolution) *slide.Scene {
	t.Helper()
	r, _ := raster.New(200, 100, 1, raster.Byte)
	src := slide.NewRasterSource(slide.SceneInfo{Name: "m", Resolution: res}, r)
	s, err := slide.New("mem", "TEST", &slide.Contents{Scenes: []slide.Source{src}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	scene, _ := s.Scene(0)
	return scene
}

func TestMeasureDistance(t *testing.T) {
	scene := measuredScene(t, slide.Resolution{X: 0.5e-6, Y: 0.5e-6})

	tests := []struct {
		name    string
		p1, p2  Point
		pixels  float64
		angle   float64
		microns float64
	}{
		{"horizontal", Point{0, 0}, Point{100, 0}, 100, 0, 50},
		{"vertical", Point{10, 10}, Point{10, 90}, 80, 90, 40},
		{"diagonal", Point{0, 0}, Point{30, 40}, 50, 53.1, 25},
		{"backwards", Point{100, 0}, Point{0, 0}, 100, 180, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MeasureDistance(scene, tt.p1, tt.p2)
			if err != nil {
				t.Fatal(err)
			}
			if got.DistancePixels != tt.pixels || math.Abs(got.AngleDegrees-tt.angle) > 0.05 || got.DistanceMicrons != tt.microns {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestMeasureDistance_NoResolution(t *testing.T) {
	scene := measuredScene(t, slide.Resolution{})
	got, err := MeasureDistance(scene, Point{0, 0}, Point{3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if got.DistancePixels != 5 || got.DistanceMicrons != 0 {
		t.Errorf("got %+v", got)
	}
	if _, err := MeasureDistance(scene, Point{0, 0}, Point{200, 0}); !errors.Is(err, slide.ErrInvalidRegion) {
		t.Errorf("out of bounds: got %v", err)
	}
}
