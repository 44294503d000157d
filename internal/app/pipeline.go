package app

import (
	"log"
	"time"

	"github.com/ayusman/cloak/internal/cloak"
	"gocv.io/x/gocv"
)

// ProcessFrame runs the cloak pipeline on frame against the current
// background. The caller owns the returned Result.
func (a *App) ProcessFrame(frame gocv.Mat, r cloak.ColorRange) (*cloak.Result, error) {
	a.bgMu.RLock()
	defer a.bgMu.RUnlock()

	if a.background == nil {
		return nil, ErrNoBackgroundCaptured
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	return a.pipeline.Process(frame, *a.background, r)
}

// runPipeline is the processing loop. It captures the background if none
// exists, then handles one frame per tick until stopped or told to quit.
//
// Signals are handled between ticks, so a recapture never overlaps a frame.
func (a *App) runPipeline(stopCh <-chan struct{}) {
	defer a.shutdown()

	if !a.HasBackground() {
		if _, err := a.Initialize(a.camera, a.config.WarmupFrames); err != nil {
			log.Printf("Background capture failed: %v", err)
			a.recordError(err)
			return
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case sig := <-a.signals:
			switch sig {
			case SignalQuit:
				log.Println("Quit requested")
				return
			case SignalRecapture:
				if _, err := a.Recapture(a.camera, a.config.WarmupFrames); err != nil {
					a.recordError(err)
				}
			}
		case <-ticker.C:
			a.processTick()
		}
	}
}

// processTick reads one frame, keys it when enabled and publishes the result.
func (a *App) processTick() {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.recordDropped()
		return
	}
	defer frame.Close()

	if !a.IsEnabled() {
		empty := gocv.NewMat()
		defer empty.Close()
		a.publish(*frame, empty)
		a.recordPassthrough()
		return
	}

	result, err := a.ProcessFrame(*frame, a.Range())
	if err != nil {
		log.Printf("Error processing frame: %v", err)
		a.recordError(err)
		return
	}
	defer result.Close()

	a.publish(result.Output, result.Mask)
	a.recordResult(result)
}

func (a *App) publish(output, mask gocv.Mat) {
	if a.config.Sink != nil {
		a.config.Sink.Publish(output, mask)
	}
}
