package cloak

import (
	"image"

	"gocv.io/x/gocv"
)

// Segment returns a CV_8UC1 mask with 255 wherever the median-blurred frame
// falls inside r in HSV space and 0 elsewhere. The caller owns the returned Mat.
func (p *Pipeline) Segment(frame gocv.Mat, r ColorRange) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(frame, &blurred, p.params.MedianBlurSize)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(blurred, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	for i, b := range r.bounds() {
		if i == 0 {
			gocv.InRangeWithScalar(hsv, b[0], b[1], &mask)
			continue
		}

		part := gocv.NewMat()
		gocv.InRangeWithScalar(hsv, b[0], b[1], &part)
		gocv.BitwiseOr(mask, part, &mask)
		part.Close()
	}

	return mask
}

// Refine removes isolated specks with an opening and fills small holes with a
// closing, both using a square element repeated MorphIterations times.
func (p *Pipeline) Refine(mask gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: p.params.MorphKernelSize, Y: p.params.MorphKernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyExWithParams(mask, &opened, gocv.MorphOpen, kernel, p.params.MorphIterations, gocv.BorderConstant)

	closed := gocv.NewMat()
	gocv.MorphologyExWithParams(opened, &closed, gocv.MorphClose, kernel, p.params.MorphIterations, gocv.BorderConstant)

	return closed
}
