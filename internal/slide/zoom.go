package slide

import (
	"image"
	"math"
)

// levelTolerance is the relative distance under which a requested zoom is
// treated as an exact match for a pyramid level.
const levelTolerance = 0.01

// selectLevel returns the pyramid level to read for the given zoom (output
// size over region size). It picks the coarsest level that still has at
// least the requested resolution, snapping to a level within 1%, and falls
// back to the coarsest level for very small zooms.
func selectLevel(levels []Level, zoom float64) int {
	if len(levels) == 0 || zoom >= levels[0].Scale {
		return 0
	}
	for i := 1; i < len(levels); i++ {
		cur := levels[i].Scale
		if math.Abs(zoom-cur)/cur < levelTolerance {
			return i
		}
		if zoom <= levels[i-1].Scale && zoom > cur {
			return i - 1
		}
	}
	return len(levels) - 1
}

// scaleRect maps a base-resolution rectangle onto a level. The origin is
// floored and the far edge ceiled so the level region covers every base
// pixel of the request. A non-empty request inside the base level always
// yields a non-empty level region.
func scaleRect(r image.Rectangle, base, lvl Level) image.Rectangle {
	sx := float64(lvl.Width) / float64(base.Width)
	sy := float64(lvl.Height) / float64(base.Height)
	out := image.Rect(
		int(math.Floor(float64(r.Min.X)*sx)),
		int(math.Floor(float64(r.Min.Y)*sy)),
		int(math.Ceil(float64(r.Max.X)*sx)),
		int(math.Ceil(float64(r.Max.Y)*sy)),
	)
	return out.Intersect(image.Rect(0, 0, lvl.Width, lvl.Height))
}
