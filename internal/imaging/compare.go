package imaging

import (
	"fmt"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
	"github.com/ironsheep/slide-tools-mcp/internal/slide"
)

// Comparison is the similarity of two scenes and the size they were
// compared at.
type Comparison struct {
	*raster.Similarity
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`
}

// CompareScenes reads rect from both scenes, resampled to a common size that
// fits in limit, and compares the rasters. A zero rect compares the whole
// scenes; the size follows the first scene.
func CompareScenes(a, b *slide.Scene, rect slide.Rect, limit int) (*Comparison, error) {
	w, h := rect.Width, rect.Height
	if w == 0 || h == 0 {
		w, h = a.Rect().Width, a.Rect().Height
	}
	size := FitSize(w, h, limit)

	ra, err := a.ReadBlock(slide.BlockRequest{Rect: rect, Size: size})
	if err != nil {
		return nil, fmt.Errorf("first image: %w", err)
	}
	rb, err := b.ReadBlock(slide.BlockRequest{Rect: rect, Size: size})
	if err != nil {
		return nil, fmt.Errorf("second image: %w", err)
	}
	sim, err := raster.CompareDetailed(ra, rb)
	if err != nil {
		return nil, err
	}
	return &Comparison{Similarity: sim, Width: ra.Width, Height: ra.Height, Channels: ra.Channels}, nil
}
