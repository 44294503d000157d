package app

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/cloak/internal/capture"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// BackgroundStats describes one background capture.
type BackgroundStats struct {
	Requested int           `json:"requested"`
	Captured  int           `json:"captured"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
	// MeanFPS and StdDevFPS summarize the rate frames arrived at.
	MeanFPS   float64 `json:"mean_fps"`
	StdDevFPS float64 `json:"stddev_fps"`
	// PeakChange is the largest frame-to-frame change seen, in percent of pixels.
	PeakChange float64 `json:"peak_change_percent"`
	// Stable is false when something moved through the shot during capture.
	Stable     bool      `json:"stable"`
	CapturedAt time.Time `json:"captured_at"`
}

// Initialize reads count frames from src and keeps the last good one as the
// background. Frames that fail with capture.ErrFrameRead are skipped.
// A count of 0 or less uses the configured warm-up length.
func (a *App) Initialize(src capture.FrameSource, count int) (BackgroundStats, error) {
	a.mu.Lock()
	prev := a.state
	switch prev {
	case StateStopped:
		a.mu.Unlock()
		return BackgroundStats{}, fmt.Errorf("%w: pipeline is stopped", ErrInvalidState)
	case StateWarmingUp, StateRecapturing:
		a.mu.Unlock()
		return BackgroundStats{}, fmt.Errorf("%w: capture already in progress", ErrInvalidState)
	}
	a.transitionLocked(StateWarmingUp)
	a.mu.Unlock()

	bg, stats, err := a.captureBackground(src, count)
	if err != nil {
		a.setState(prev)
		return stats, err
	}

	a.swapBackground(bg, stats)
	a.setState(StateRunning)
	return stats, nil
}

// Recapture replaces the background with a fresh capture from src. The old
// background stays in use until the new one is complete, and is kept when
// the capture fails.
func (a *App) Recapture(src capture.FrameSource, count int) (BackgroundStats, error) {
	a.mu.Lock()
	if a.state != StateRunning {
		state := a.state
		a.mu.Unlock()
		return BackgroundStats{}, fmt.Errorf("%w: cannot recapture while %s", ErrInvalidState, state)
	}
	a.transitionLocked(StateRecapturing)
	a.mu.Unlock()

	defer a.setState(StateRunning)

	bg, stats, err := a.captureBackground(src, count)
	if err != nil {
		log.Printf("Recapture failed, keeping previous background: %v", err)
		return stats, err
	}

	a.swapBackground(bg, stats)
	return stats, nil
}

// swapBackground installs bg and releases the previous frame.
func (a *App) swapBackground(bg *gocv.Mat, stats BackgroundStats) {
	a.bgMu.Lock()
	old := a.background
	a.background = bg
	a.bgMu.Unlock()

	if old != nil {
		old.Close()
	}

	a.mu.Lock()
	a.stats.background = &stats
	a.mu.Unlock()

	log.Printf("Background captured: %d/%d frames, %.1f fps, peak change %.1f%%",
		stats.Captured, stats.Requested, stats.MeanFPS, stats.PeakChange)
}

// captureBackground reads up to count frames and returns the last good one.
func (a *App) captureBackground(src capture.FrameSource, count int) (*gocv.Mat, BackgroundStats, error) {
	if count <= 0 {
		count = a.config.WarmupFrames
	}

	stats := BackgroundStats{Requested: count}

	meter := capture.NewChangeMeter()
	defer meter.Close()

	var last *gocv.Mat
	var rates []float64
	start := time.Now()
	prevRead := start

	for i := 0; i < count; i++ {
		frame, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrFrameRead) {
				stats.Skipped++
				continue
			}
			if last != nil {
				last.Close()
			}
			stats.Duration = time.Since(start)
			return nil, stats, fmt.Errorf("capture background: %w", err)
		}

		now := time.Now()
		if stats.Captured > 0 {
			if d := now.Sub(prevRead); d > 0 {
				rates = append(rates, float64(time.Second)/float64(d))
			}
		}
		prevRead = now

		meter.Observe(frame)

		if last != nil {
			last.Close()
		}
		last = frame
		stats.Captured++
	}

	stats.Duration = time.Since(start)
	stats.PeakChange = meter.Peak()
	stats.Stable = stats.PeakChange <= capture.DefaultStillPercent

	switch len(rates) {
	case 0:
	case 1:
		stats.MeanFPS = rates[0]
	default:
		stats.MeanFPS, stats.StdDevFPS = stat.MeanStdDev(rates, nil)
	}

	if last == nil {
		return nil, stats, fmt.Errorf("%w: all %d reads failed", ErrNoBackgroundCaptured, count)
	}

	if !stats.Stable {
		log.Printf("Scene changed %.1f%% during background capture; keep the shot clear and recapture", stats.PeakChange)
	}

	stats.CapturedAt = time.Now()
	return last, stats, nil
}
