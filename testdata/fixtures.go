// Package testdata builds synthetic frames for pipeline tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame size used by most tests. Large enough that a full-frame region
// clears the default minimum area.
const (
	Width  = 64
	Height = 48
)

// BGR colors with known HSV coordinates (OpenCV 8-bit hue is degrees/2).
var (
	Red    = color.RGBA{R: 255, A: 255}                 // H=0   S=255 V=255
	Green  = color.RGBA{G: 255, A: 255}                 // H=60
	Blue   = color.RGBA{B: 255, A: 255}                 // H=120
	Cyan   = color.RGBA{G: 255, B: 255, A: 255}         // H=90
	Rose   = color.RGBA{R: 255, B: 42, A: 255}          // H=175
	Orange = color.RGBA{R: 255, G: 43, A: 255}          // H=5
	Gray   = color.RGBA{R: 128, G: 128, B: 128, A: 255} // S=0   V=128
)

// Solid returns a CV_8UC3 frame filled with c. The caller owns the Mat.
func Solid(rows, cols int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(scalar(c), rows, cols, gocv.MatTypeCV8UC3)
}

// WithPatch returns a frame of bg with rect filled with fg.
func WithPatch(rows, cols int, bg, fg color.RGBA, rect image.Rectangle) gocv.Mat {
	m := Solid(rows, cols, bg)
	gocv.Rectangle(&m, rect, fg, -1)
	return m
}

// Mask returns a CV_8UC1 mask with the given rectangles set to 255.
func Mask(rows, cols int, rects ...image.Rectangle) gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.SetUCharAt(y, x, 255)
			}
		}
	}
	return m
}

// Alpha returns a CV_32FC1 alpha mask filled with v.
func Alpha(rows, cols int, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, 0, 0, 0), rows, cols, gocv.MatTypeCV32F)
}

// Sequence returns n solid frames of c.
func Sequence(n, rows, cols int, c color.RGBA) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := Solid(rows, cols, c)
		frames[i] = &m
	}
	return frames
}

// CloseAll closes every frame in frames.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// scalar converts c to a BGR scalar.
func scalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}
