package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/capture"
	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/server"
	"github.com/ayusman/cloak/internal/store"
	"github.com/ayusman/cloak/testdata"
	"gocv.io/x/gocv"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// Empty green room for the background, then a red cloak in the middle.
	backdrop := testdata.Sequence(3, testdata.Height, testdata.Width, testdata.Green)
	defer testdata.CloseAll(backdrop)
	cloaked := testdata.WithPatch(testdata.Height, testdata.Width, testdata.Green, testdata.Red, image.Rect(16, 12, 48, 36))
	defer cloaked.Close()

	hub := server.NewFrameHub(server.DefaultJPEGQuality)
	defer hub.Close()

	cfg := app.DefaultConfig()
	cfg.Camera = capture.NewMockCamera([]*gocv.Mat{&cloaked}, true)
	cfg.FPS = 100
	cfg.Sink = hub

	application, err := app.New(cfg)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Stop()

	srv := server.New(server.Config{
		Store:      s,
		Controller: application,
		Frames:     hub,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	client := ts.Client()

	t.Run("CaptureBackground", func(t *testing.T) {
		bgCam := capture.NewMockCamera(backdrop, true)
		if err := bgCam.Open(); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer bgCam.Close()

		stats, err := application.Initialize(bgCam, 6)
		if err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if stats.Captured != 6 || !stats.Stable {
			t.Errorf("stats = %+v, want 6 stable frames", stats)
		}
	})

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	t.Run("CloakDetected", func(t *testing.T) {
		status := waitForStatus(t, client, ts.URL, func(s app.Status) bool {
			return s.FramesProcessed > 0 && s.Detected
		})
		if status.State != app.StateRunning {
			t.Errorf("state = %s, want %s", status.State, app.StateRunning)
		}
		if status.Area <= cloak.DefaultMinArea {
			t.Errorf("area = %d, want more than %d", status.Area, cloak.DefaultMinArea)
		}
		if status.Background == nil || status.Background.Captured != 6 {
			t.Errorf("background stats = %+v, want 6 captured frames", status.Background)
		}
	})

	t.Run("StreamOutputAndMask", func(t *testing.T) {
		for _, path := range []string{"/api/stream", "/api/mask"} {
			if jpeg := firstPart(t, client, ts.URL+path); !bytes.HasPrefix(jpeg, []byte{0xFF, 0xD8}) {
				t.Errorf("%s first part is not a JPEG", path)
			}
		}
	})

	t.Run("RetuneRange", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/range", strings.NewReader(`{"low_h": 100, "high_h": 130}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/range error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		// Nothing blue in view, so the cloak disappears from the status.
		status := waitForStatus(t, client, ts.URL, func(s app.Status) bool {
			return s.Range.LowH == 100 && !s.Detected
		})
		if status.Range.HighH != 130 {
			t.Errorf("range = %v, want hue 100-130", status.Range)
		}

		saved, err := s.Settings().ActiveRange()
		if err != nil {
			t.Fatalf("ActiveRange() error = %v", err)
		}
		if saved != status.Range {
			t.Errorf("persisted range = %v, want %v", saved, status.Range)
		}
	})

	t.Run("Quit", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/quit", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/quit error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}

		select {
		case <-application.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not stop after quit")
		}
		if application.State() != app.StateStopped {
			t.Errorf("state = %s, want %s", application.State(), app.StateStopped)
		}
	})
}

func waitForStatus(t *testing.T, client *http.Client, baseURL string, ok func(app.Status) bool) app.Status {
	t.Helper()

	var status app.Status
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		status = app.Status{}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if ok(status) {
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("status never matched, last = %+v", status)
	return status
}

// firstPart reads the beginning of the first MJPEG part served at url.
func firstPart(t *testing.T, client *http.Client, url string) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("bad Content-Type %q: %v", resp.Header.Get("Content-Type"), err)
	}

	part, err := multipart.NewReader(resp.Body, params["boundary"]).NextPart()
	if err != nil {
		t.Fatalf("NextPart() error = %v", err)
	}
	if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("part Content-Type = %q, want image/jpeg", ct)
	}

	head := make([]byte, 2)
	if _, err := io.ReadFull(part, head); err != nil {
		t.Fatalf("failed to read part: %v", err)
	}
	return head
}
