package app

import (
	"time"

	"github.com/ayusman/cloak/internal/cloak"
)

// counters accumulates loop activity. Guarded by App.mu.
type counters struct {
	processed  uint64
	dropped    uint64
	errors     uint64
	detected   bool
	area       int
	lastError  string
	lastFrame  time.Time
	background *BackgroundStats
}

// Status is a point-in-time snapshot of the pipeline for display.
type Status struct {
	State           State            `json:"state"`
	Enabled         bool             `json:"enabled"`
	Range           cloak.ColorRange `json:"range"`
	Detected        bool             `json:"detected"`
	Area            int              `json:"area"`
	FramesProcessed uint64           `json:"frames_processed"`
	FramesDropped   uint64           `json:"frames_dropped"`
	Errors          uint64           `json:"errors"`
	LastError       string           `json:"last_error,omitempty"`
	LastFrame       time.Time        `json:"last_frame,omitzero"`
	Background      *BackgroundStats `json:"background,omitempty"`
}

// Status returns a snapshot of the pipeline state and counters.
func (a *App) Status() Status {
	rng := a.Range()

	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Status{
		State:           a.state,
		Enabled:         a.enabled,
		Range:           rng,
		Detected:        a.stats.detected,
		Area:            a.stats.area,
		FramesProcessed: a.stats.processed,
		FramesDropped:   a.stats.dropped,
		Errors:          a.stats.errors,
		LastError:       a.stats.lastError,
		LastFrame:       a.stats.lastFrame,
	}
	if a.stats.background != nil {
		bg := *a.stats.background
		s.Background = &bg
	}
	return s
}

func (a *App) recordResult(r *cloak.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.processed++
	a.stats.detected = r.Detected
	a.stats.area = r.Area
	a.stats.lastFrame = time.Now()
}

func (a *App) recordPassthrough() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.processed++
	a.stats.detected = false
	a.stats.area = 0
	a.stats.lastFrame = time.Now()
}

func (a *App) recordDropped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.dropped++
}

func (a *App) recordError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.errors++
	a.stats.lastError = err.Error()
}
