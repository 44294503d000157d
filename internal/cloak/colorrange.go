// Package cloak implements the per-frame color keying pipeline: segmentation,
// mask refinement, largest-region selection, feathering and compositing.
package cloak

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Channel domains for 8-bit HSV images as produced by OpenCV.
const (
	MaxHue        = 179
	MaxSaturation = 255
	MaxValue      = 255
)

// ErrRangeOutOfDomain is returned when a color range bound lies outside its channel domain.
var ErrRangeOutOfDomain = errors.New("color range out of domain")

// ColorRange is the hue/saturation/value box a pixel must fall into to be keyed.
// When LowH > HighH the hue interval wraps around the end of the hue circle.
type ColorRange struct {
	LowH  int `json:"low_h"`
	LowS  int `json:"low_s"`
	LowV  int `json:"low_v"`
	HighH int `json:"high_h"`
	HighS int `json:"high_s"`
	HighV int `json:"high_v"`
}

// DefaultColorRange returns a range that keys saturated reds.
func DefaultColorRange() ColorRange {
	return ColorRange{
		LowH:  0,
		LowS:  120,
		LowV:  70,
		HighH: 10,
		HighS: 255,
		HighV: 255,
	}
}

// Wraps reports whether the hue interval crosses the 179/0 boundary.
func (r ColorRange) Wraps() bool {
	return r.LowH > r.HighH
}

// Validate checks that every bound lies inside its channel domain.
// Inverted saturation or value bounds are not an error; they match nothing.
func (r ColorRange) Validate() error {
	check := func(name string, v, max int) error {
		if v < 0 || v > max {
			return fmt.Errorf("%w: %s=%d not in [0,%d]", ErrRangeOutOfDomain, name, v, max)
		}
		return nil
	}

	bounds := []struct {
		name string
		v    int
		max  int
	}{
		{"low_h", r.LowH, MaxHue},
		{"low_s", r.LowS, MaxSaturation},
		{"low_v", r.LowV, MaxValue},
		{"high_h", r.HighH, MaxHue},
		{"high_s", r.HighS, MaxSaturation},
		{"high_v", r.HighV, MaxValue},
	}
	for _, b := range bounds {
		if err := check(b.name, b.v, b.max); err != nil {
			return err
		}
	}
	return nil
}

// Clamp returns a copy of r with every bound coerced into its channel domain.
func (r ColorRange) Clamp() ColorRange {
	return ColorRange{
		LowH:  clampInt(r.LowH, 0, MaxHue),
		LowS:  clampInt(r.LowS, 0, MaxSaturation),
		LowV:  clampInt(r.LowV, 0, MaxValue),
		HighH: clampInt(r.HighH, 0, MaxHue),
		HighS: clampInt(r.HighS, 0, MaxSaturation),
		HighV: clampInt(r.HighV, 0, MaxValue),
	}
}

// Contains reports whether an HSV triple is a member of the range.
func (r ColorRange) Contains(h, s, v int) bool {
	if s < r.LowS || s > r.HighS || v < r.LowV || v > r.HighV {
		return false
	}
	if r.Wraps() {
		return (h >= 0 && h <= r.HighH) || (h >= r.LowH && h <= MaxHue)
	}
	return h >= r.LowH && h <= r.HighH
}

// bounds returns the scalar pairs passed to InRange. A wrapping range
// splits into [0,HighH] and [LowH,179], both with the same S/V bounds.
func (r ColorRange) bounds() [][2]gocv.Scalar {
	scalar := func(h, s, v int) gocv.Scalar {
		return gocv.NewScalar(float64(h), float64(s), float64(v), 0)
	}

	if !r.Wraps() {
		return [][2]gocv.Scalar{
			{scalar(r.LowH, r.LowS, r.LowV), scalar(r.HighH, r.HighS, r.HighV)},
		}
	}

	return [][2]gocv.Scalar{
		{scalar(0, r.LowS, r.LowV), scalar(r.HighH, r.HighS, r.HighV)},
		{scalar(r.LowH, r.LowS, r.LowV), scalar(MaxHue, r.HighS, r.HighV)},
	}
}

// String renders the range the way it is logged.
func (r ColorRange) String() string {
	return fmt.Sprintf("H[%d,%d] S[%d,%d] V[%d,%d]", r.LowH, r.HighH, r.LowS, r.HighS, r.LowV, r.HighV)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
