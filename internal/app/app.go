// Package app orchestrates background capture and the per-frame cloak pipeline.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/cloak/internal/capture"
	"github.com/ayusman/cloak/internal/cloak"
	"gocv.io/x/gocv"
)

// Pipeline defaults.
const (
	// DefaultWarmupFrames is how many frames are read when capturing the background.
	DefaultWarmupFrames = 90
	// DefaultFPS is the rate of the processing loop.
	DefaultFPS = capture.DefaultFPS
	// signalBuffer is the capacity of the control signal queue.
	signalBuffer = 4
)

var (
	// ErrNoBackgroundCaptured is returned when a frame is processed before a
	// background exists, or when background capture got no usable frame.
	ErrNoBackgroundCaptured = errors.New("no background captured")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid pipeline state")
)

// State is the lifecycle state of the pipeline.
type State string

const (
	StateIdle        State = "idle"
	StateWarmingUp   State = "warming_up"
	StateRunning     State = "running"
	StateRecapturing State = "recapturing"
	StateStopped     State = "stopped"
)

// Signal is a control request delivered to the processing loop.
type Signal int

const (
	// SignalQuit ends the processing loop.
	SignalQuit Signal = iota
	// SignalRecapture replaces the background with a fresh capture.
	SignalRecapture
)

func (s Signal) String() string {
	switch s {
	case SignalQuit:
		return "quit"
	case SignalRecapture:
		return "recapture"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Sink receives every frame the loop produces. Publish must not retain the
// Mats after it returns. mask is empty when keying is disabled.
type Sink interface {
	Publish(output, mask gocv.Mat)
}

// Config holds configuration options for the application.
type Config struct {
	// Camera overrides the device built from CameraOptions.
	Camera        capture.Camera
	CameraOptions capture.Options
	FPS           int
	WarmupFrames  int
	Params        cloak.Params
	// Range is the initial color range.
	Range cloak.ColorRange
	Sink  Sink
}

// DefaultConfig returns a Config for the default camera and tuning.
func DefaultConfig() Config {
	return Config{
		CameraOptions: capture.DefaultOptions(),
		FPS:           DefaultFPS,
		WarmupFrames:  DefaultWarmupFrames,
		Params:        cloak.DefaultParams(),
		Range:         cloak.DefaultColorRange(),
	}
}

// App owns the background frame and runs the cloak pipeline over a camera feed.
type App struct {
	config   Config
	camera   capture.Camera
	pipeline *cloak.Pipeline

	// bgMu guards the background. ProcessFrame holds it for reading so a
	// recapture never swaps the frame out from under a running blend.
	bgMu       sync.RWMutex
	background *gocv.Mat

	rangeMu sync.Mutex
	rng     cloak.ColorRange

	mu      sync.RWMutex
	state   State
	enabled bool
	stopCh  chan struct{}
	stats   counters

	signals   chan Signal
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new App instance with the given configuration.
func New(config Config) (*App, error) {
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	if config.WarmupFrames <= 0 {
		config.WarmupFrames = DefaultWarmupFrames
	}
	if config.Params == (cloak.Params{}) {
		config.Params = cloak.DefaultParams()
	}

	if err := config.Range.Validate(); err != nil {
		return nil, fmt.Errorf("initial range: %w", err)
	}

	pipeline, err := cloak.NewPipeline(config.Params)
	if err != nil {
		return nil, err
	}

	camera := config.Camera
	if camera == nil {
		camera = capture.NewCamera(config.CameraOptions)
	}

	return &App{
		config:   config,
		camera:   camera,
		pipeline: pipeline,
		rng:      config.Range,
		state:    StateIdle,
		enabled:  true,
		signals:  make(chan Signal, signalBuffer),
		done:     make(chan struct{}),
	}, nil
}

// SetEnabled turns keying on or off. When off, live frames pass through.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether keying is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// State returns the current lifecycle state.
func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitionLocked(s)
}

// transitionLocked moves to s unless the pipeline has stopped. a.mu must be held.
func (a *App) transitionLocked(s State) {
	if a.state == StateStopped {
		return
	}
	if a.state != s {
		log.Printf("Pipeline state: %s -> %s", a.state, s)
	}
	a.state = s
}

// Range returns the active color range.
func (a *App) Range() cloak.ColorRange {
	a.rangeMu.Lock()
	defer a.rangeMu.Unlock()
	return a.rng
}

// SetRange replaces the active color range. The next frame uses it.
func (a *App) SetRange(r cloak.ColorRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	a.rangeMu.Lock()
	defer a.rangeMu.Unlock()
	a.rng = r
	return nil
}

// Params returns the pipeline tuning.
func (a *App) Params() cloak.Params {
	return a.pipeline.Params()
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// HasBackground reports whether a background frame is available.
func (a *App) HasBackground() bool {
	a.bgMu.RLock()
	defer a.bgMu.RUnlock()
	return a.background != nil
}

// Signal queues a control request for the processing loop. It never blocks;
// requests arriving while the queue is full are dropped.
func (a *App) Signal(s Signal) {
	select {
	case a.signals <- s:
	default:
		log.Printf("Dropping %s signal: queue full", s)
	}
}

// Done is closed once the pipeline has stopped.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Start opens the camera and launches the processing loop. When no
// background exists yet the loop captures one first.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Don't start if already running
	if a.stopCh != nil {
		return nil
	}
	if a.state == StateStopped {
		return fmt.Errorf("%w: pipeline is stopped", ErrInvalidState)
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	go a.runPipeline(a.stopCh)

	log.Println("Cloak pipeline started")
	return nil
}

// Stop halts the processing loop and releases the camera and background.
// It is safe to call more than once and after a quit signal.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh := a.stopCh
	a.stopCh = nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-a.done
		return
	}
	a.shutdown()
}

// shutdown moves to the terminal state. Only the first call has an effect.
func (a *App) shutdown() {
	a.closeOnce.Do(func() {
		if err := a.camera.Close(); err != nil {
			log.Printf("Error closing camera: %v", err)
		}

		a.bgMu.Lock()
		if a.background != nil {
			a.background.Close()
			a.background = nil
		}
		a.bgMu.Unlock()

		a.mu.Lock()
		a.state = StateStopped
		a.mu.Unlock()

		close(a.done)
		log.Println("Cloak pipeline stopped")
	})
}
