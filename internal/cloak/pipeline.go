package cloak

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Default pipeline settings.
const (
	// DefaultMedianBlurSize is the aperture of the pre-segmentation median filter.
	DefaultMedianBlurSize = 5
	// DefaultMorphKernelSize is the side of the square structuring element.
	DefaultMorphKernelSize = 7
	// DefaultMorphIterations is applied to both opening and closing.
	DefaultMorphIterations = 2
	// DefaultMinArea is the cell count a region must exceed to be keyed.
	DefaultMinArea = 500
	// DefaultFeatherSize is the Gaussian kernel extent used to soften mask edges.
	DefaultFeatherSize = 15
)

var (
	// ErrDimensionMismatch is returned when frames or masks disagree in size.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidFrame is returned when a Mat is empty or has an unexpected type.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrInvalidParams is returned by Params.Validate.
	ErrInvalidParams = errors.New("invalid pipeline parameters")
)

// Params holds the tunables of the per-frame pipeline.
type Params struct {
	// MedianBlurSize must be odd and greater than 1.
	MedianBlurSize int
	// MorphKernelSize is the side of the square element for opening and closing.
	MorphKernelSize int
	// MorphIterations is how many times each morphological operation repeats.
	MorphIterations int
	// MinArea is exclusive: a region needs more cells than this to be kept.
	MinArea int
	// FeatherSize must be odd. Larger values give softer edges.
	FeatherSize int
	// FeatherSigma of 0 derives sigma from FeatherSize.
	FeatherSigma float64
}

// DefaultParams returns Params with the values the effect was tuned with.
func DefaultParams() Params {
	return Params{
		MedianBlurSize:  DefaultMedianBlurSize,
		MorphKernelSize: DefaultMorphKernelSize,
		MorphIterations: DefaultMorphIterations,
		MinArea:         DefaultMinArea,
		FeatherSize:     DefaultFeatherSize,
		FeatherSigma:    0,
	}
}

// Validate checks kernel sizes and thresholds.
func (p Params) Validate() error {
	switch {
	case p.MedianBlurSize < 3 || p.MedianBlurSize%2 == 0:
		return fmt.Errorf("%w: median blur size %d must be odd and >= 3", ErrInvalidParams, p.MedianBlurSize)
	case p.MorphKernelSize < 1:
		return fmt.Errorf("%w: morph kernel size %d", ErrInvalidParams, p.MorphKernelSize)
	case p.MorphIterations < 1:
		return fmt.Errorf("%w: morph iterations %d", ErrInvalidParams, p.MorphIterations)
	case p.MinArea < 0:
		return fmt.Errorf("%w: min area %d", ErrInvalidParams, p.MinArea)
	case p.FeatherSize < 1 || p.FeatherSize%2 == 0:
		return fmt.Errorf("%w: feather size %d must be odd and positive", ErrInvalidParams, p.FeatherSize)
	case p.FeatherSigma < 0:
		return fmt.Errorf("%w: feather sigma %f", ErrInvalidParams, p.FeatherSigma)
	}
	return nil
}

// Pipeline runs the keying stages with a fixed set of Params.
// It holds no per-frame state and is safe for concurrent use.
type Pipeline struct {
	params Params
}

// NewPipeline creates a Pipeline after validating params.
func NewPipeline(params Params) (*Pipeline, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{params: params}, nil
}

// Params returns the settings the pipeline was built with.
func (p *Pipeline) Params() Params {
	return p.params
}

// Result is the outcome of processing one frame.
// The caller owns both Mats and must call Close.
type Result struct {
	// Output is the composited CV_8UC3 frame.
	Output gocv.Mat
	// Mask is the feathered mask scaled to CV_8UC1 for display.
	Mask gocv.Mat
	// Area is the cell count of the keyed region, 0 when nothing was detected.
	Area int
	// Detected is false when no region exceeded MinArea.
	Detected bool
}

// Close releases the Mats held by the result.
func (r *Result) Close() {
	r.Output.Close()
	r.Mask.Close()
}

// Process runs Segment, Refine, SelectLargest, Feather and Composite on one frame.
//
// Stages:
// 1. Median blur, convert to HSV, range test (two tests joined on hue wrap)
// 2. Opening then closing to drop specks and fill gaps
// 3. Keep the largest 8-connected region above MinArea, filled solid
// 4. Gaussian feathering into a [0,1] alpha mask
// 5. alpha*background + (1-alpha)*live
func (p *Pipeline) Process(frame, background gocv.Mat, r ColorRange) (*Result, error) {
	if err := checkFrame("live", frame); err != nil {
		return nil, err
	}
	if err := checkFrame("background", background); err != nil {
		return nil, err
	}
	if err := sameSize(frame, background); err != nil {
		return nil, err
	}

	raw := p.Segment(frame, r)
	defer raw.Close()

	refined := p.Refine(raw)
	defer refined.Close()

	selected, sel := p.SelectLargest(refined)
	defer selected.Close()

	alpha := p.Feather(selected)
	defer alpha.Close()

	out, err := Composite(frame, background, alpha)
	if err != nil {
		return nil, err
	}

	mask := AlphaToMask(alpha)

	return &Result{
		Output:   *out,
		Mask:     mask,
		Area:     sel.Area,
		Detected: sel.Detected,
	}, nil
}

// checkFrame verifies that m is a non-empty 3-channel 8-bit image.
func checkFrame(name string, m gocv.Mat) error {
	if m.Empty() {
		return fmt.Errorf("%w: %s frame is empty", ErrInvalidFrame, name)
	}
	if m.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("%w: %s frame has type %v, want CV_8UC3", ErrInvalidFrame, name, m.Type())
	}
	return nil
}

// sameSize returns ErrDimensionMismatch unless a and b have equal rows and cols.
func sameSize(a, b gocv.Mat) error {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	return nil
}
