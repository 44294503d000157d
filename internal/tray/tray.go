// Package tray provides a system tray menu for controlling the cloak pipeline.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/cloak/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(enabled bool)
	onRecapture func()
	onSettings  func()
	onQuit      func()
	enabled     bool
	status      string
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
		status:  "Status: starting",
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecapture sets the callback function to be called when a new background is requested.
func (t *Tray) OnRecapture(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecapture = fn
}

// OnSettings sets the callback function to be called when the controls menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called or the quit item is clicked.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Cloak")
	systray.SetTooltip("Cloak background replacement")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle the cloak effect")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Pipeline status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecapture := systray.AddMenuItem("Recapture Background", "Step out of frame, then capture a new background")
	menuSettings := systray.AddMenuItem("Open Controls...", "Open the range controls in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Cloak")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecapture.ClickedCh:
				t.handleRecapture()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleRecapture handles the recapture menu item click.
func (t *Tray) handleRecapture() {
	t.mu.RLock()
	callback := t.onRecapture
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleSettings handles the controls menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the status line in the menu.
func (t *Tray) SetStatus(s app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = FormatStatus(s)
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
}

// FormatStatus renders a one-line summary of s for the menu.
func FormatStatus(s app.Status) string {
	switch s.State {
	case app.StateRunning:
		if !s.Enabled {
			return "Status: paused"
		}
		if s.Detected {
			return fmt.Sprintf("Status: cloaking (%d px)", s.Area)
		}
		return "Status: no cloak in view"
	case app.StateWarmingUp, app.StateRecapturing:
		return "Status: capturing background..."
	default:
		return "Status: " + string(s.State)
	}
}

// StatusLine returns the current status line text.
func (t *Tray) StatusLine() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
