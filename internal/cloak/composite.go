package cloak

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Feather turns a 0/255 mask into a CV_32FC1 alpha mask in [0,1] with soft
// edges by Gaussian smoothing. The caller owns the returned Mat.
func (p *Pipeline) Feather(mask gocv.Mat) gocv.Mat {
	scaled := gocv.NewMat()
	defer scaled.Close()
	mask.ConvertToWithParams(&scaled, gocv.MatTypeCV32F, 1.0/255.0, 0)

	alpha := gocv.NewMat()
	k := p.params.FeatherSize
	gocv.GaussianBlur(scaled, &alpha, image.Point{X: k, Y: k}, p.params.FeatherSigma, p.params.FeatherSigma, gocv.BorderDefault)

	// Kernel weights are float32 and can sum a hair over 1.
	gocv.Threshold(alpha, &alpha, 1, 1, gocv.ThresholdTrunc)

	return alpha
}

// AlphaToMask scales a [0,1] alpha mask to a CV_8UC1 image for display.
func AlphaToMask(alpha gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	alpha.ConvertToWithParams(&mask, gocv.MatTypeCV8U, 255, 0)
	return mask
}

// Composite blends background over live using alpha as the per-pixel weight:
//
//	out = alpha*background + (1-alpha)*live
//
// The blend runs in float32 and is rounded and saturated back to CV_8UC3.
// All three inputs must share width and height; otherwise ErrDimensionMismatch
// is returned with a nil Mat.
func Composite(live, background, alpha gocv.Mat) (*gocv.Mat, error) {
	if err := checkFrame("live", live); err != nil {
		return nil, err
	}
	if err := checkFrame("background", background); err != nil {
		return nil, err
	}
	if err := sameSize(live, background); err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	if err := sameSize(live, alpha); err != nil {
		return nil, fmt.Errorf("alpha: %w", err)
	}
	if alpha.Type() != gocv.MatTypeCV32F {
		return nil, fmt.Errorf("%w: alpha has type %v, want CV_32FC1", ErrInvalidFrame, alpha.Type())
	}

	rows, cols := live.Rows(), live.Cols()

	liveF := gocv.NewMat()
	defer liveF.Close()
	live.ConvertTo(&liveF, gocv.MatTypeCV32FC3)

	bgF := gocv.NewMat()
	defer bgF.Close()
	background.ConvertTo(&bgF, gocv.MatTypeCV32FC3)

	weight := gocv.NewMat()
	defer weight.Close()
	gocv.Merge([]gocv.Mat{alpha, alpha, alpha}, &weight)

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 1, 1, 0), rows, cols, gocv.MatTypeCV32FC3)
	defer ones.Close()

	inverse := gocv.NewMat()
	defer inverse.Close()
	gocv.Subtract(ones, weight, &inverse)

	cloaked := gocv.NewMat()
	defer cloaked.Close()
	gocv.Multiply(weight, bgF, &cloaked)

	visible := gocv.NewMat()
	defer visible.Close()
	gocv.Multiply(inverse, liveF, &visible)

	sum := gocv.NewMat()
	defer sum.Close()
	gocv.Add(cloaked, visible, &sum)

	out := gocv.NewMat()
	sum.ConvertTo(&out, gocv.MatTypeCV8UC3)

	return &out, nil
}
