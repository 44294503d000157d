package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene change constants
const (
	// ChangeBlurSize is the Gaussian kernel used to suppress sensor noise before differencing.
	ChangeBlurSize = 21
	// ChangeThreshold is the per-pixel gray difference counted as a change.
	ChangeThreshold = 25
	// DefaultStillPercent is the largest change between consecutive frames
	// for a scene to still count as empty during background capture.
	DefaultStillPercent = 2.0
)

// ChangeMeter measures how much a scene changes between consecutive frames.
// Background capture feeds it every sampled frame to tell whether someone
// walked through the shot.
type ChangeMeter struct {
	prevGray gocv.Mat
	hasPrev  bool
	peak     float64
	closed   bool
	mu       sync.Mutex
}

// NewChangeMeter creates a ChangeMeter with no baseline.
func NewChangeMeter() *ChangeMeter {
	return &ChangeMeter{prevGray: gocv.NewMat()}
}

// Observe compares frame with the previous observed frame and returns the
// percentage of pixels that changed. The first frame after a Reset returns 0.
func (m *ChangeMeter) Observe(frame *gocv.Mat) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || frame == nil || frame.Empty() {
		return 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: ChangeBlurSize, Y: ChangeBlurSize}, 0, 0, gocv.BorderDefault)

	if !m.hasPrev || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.hasPrev = true
		return 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, ChangeThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	if changed > m.peak {
		m.peak = changed
	}

	blurred.CopyTo(&m.prevGray)
	return changed
}

// Peak returns the largest change seen since the last Reset.
func (m *ChangeMeter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// Reset drops the baseline and the peak. The next Observe starts a new baseline.
func (m *ChangeMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hasPrev = false
	m.peak = 0
}

// Close releases the baseline Mat. Observe returns 0 afterwards.
// It may be called more than once.
func (m *ChangeMeter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.prevGray.Close()
	m.closed = true
	m.hasPrev = false
}
