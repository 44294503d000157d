package server

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fakeController stands in for the running pipeline.
type fakeController struct {
	mu      sync.Mutex
	rng     cloak.ColorRange
	enabled bool
	signals []app.Signal
	frames  uint64
}

func newFakeController() *fakeController {
	return &fakeController{rng: cloak.DefaultColorRange(), enabled: true}
}

func (c *fakeController) Range() cloak.ColorRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng
}

func (c *fakeController) SetRange(r cloak.ColorRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng = r
	return nil
}

func (c *fakeController) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *fakeController) Status() app.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	return app.Status{
		State:           app.StateRunning,
		Enabled:         c.enabled,
		Range:           c.rng,
		FramesProcessed: c.frames,
	}
}

func (c *fakeController) Signal(s app.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, s)
}

func (c *fakeController) sent() []app.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]app.Signal(nil), c.signals...)
}
