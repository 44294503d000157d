package tray

import (
	"testing"

	"github.com/ayusman/cloak/internal/app"
)

func TestTray_Toggle(t *testing.T) {
	tr := New()

	var got []bool
	tr.OnToggle(func(enabled bool) {
		got = append(got, enabled)
	})

	if !tr.IsEnabled() {
		t.Fatal("tray should start enabled")
	}

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] != false || got[1] != true {
		t.Errorf("toggle callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("tray should be enabled after two toggles")
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()

	recaptures, settings := 0, 0
	tr.OnRecapture(func() { recaptures++ })
	tr.OnSettings(func() { settings++ })

	tr.handleRecapture()
	tr.handleSettings()
	tr.handleSettings()

	if recaptures != 1 {
		t.Errorf("recapture callbacks = %d, want 1", recaptures)
	}
	if settings != 2 {
		t.Errorf("settings callbacks = %d, want 2", settings)
	}
}

func TestTray_NilCallbacks(t *testing.T) {
	tr := New()

	// Handlers without callbacks should not panic
	tr.handleToggle()
	tr.handleRecapture()
	tr.handleSettings()
}

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		name   string
		status app.Status
		want   string
	}{
		{
			name:   "cloaking",
			status: app.Status{State: app.StateRunning, Enabled: true, Detected: true, Area: 1234},
			want:   "Status: cloaking (1234 px)",
		},
		{
			name:   "nothing in view",
			status: app.Status{State: app.StateRunning, Enabled: true},
			want:   "Status: no cloak in view",
		},
		{
			name:   "paused",
			status: app.Status{State: app.StateRunning, Enabled: false, Detected: true},
			want:   "Status: paused",
		},
		{
			name:   "warming up",
			status: app.Status{State: app.StateWarmingUp},
			want:   "Status: capturing background...",
		},
		{
			name:   "recapturing",
			status: app.Status{State: app.StateRecapturing, Enabled: true},
			want:   "Status: capturing background...",
		},
		{
			name:   "stopped",
			status: app.Status{State: app.StateStopped},
			want:   "Status: stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatStatus(tt.status); got != tt.want {
				t.Errorf("FormatStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTray_SetStatus(t *testing.T) {
	tr := New()

	tr.SetStatus(app.Status{State: app.StateRunning, Enabled: true})

	if got := tr.StatusLine(); got != "Status: no cloak in view" {
		t.Errorf("StatusLine() = %q", got)
	}
}
