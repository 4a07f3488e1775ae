package svs

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	appMagPattern = regexp.MustCompile(`\|\s*AppMag\s*=\s*(\d+(?:\.\d+)?)`)
	mppPattern    = regexp.MustCompile(`\|\s*MPP\s*=\s*(\d+(?:[.,]\d+)?)`)
)

// parseMagnification extracts the objective power from an Aperio image
// description. It returns 0 when the key is absent.
func parseMagnification(desc string) float64 {
	m := appMagPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// parseResolution returns the pixel size in meters from the MPP key, which
// Aperio writes in micrometers and some locales with a decimal comma.
func parseResolution(desc string) float64 {
	m := mppPattern.FindStringSubmatch(desc)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v * 1e-6
}
