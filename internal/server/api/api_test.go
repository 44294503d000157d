package api

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeController records what the handlers ask of the pipeline.
type fakeController struct {
	mu      sync.Mutex
	rng     cloak.ColorRange
	enabled bool
	signals []app.Signal
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
	return app.Status{State: app.StateRunning, Enabled: c.enabled, Range: c.rng}
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
