package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/cloak/internal/app"
	"github.com/ayusman/cloak/internal/capture"
	"github.com/ayusman/cloak/internal/cloak"
	"github.com/ayusman/cloak/internal/server"
	"github.com/ayusman/cloak/internal/store"
	"github.com/ayusman/cloak/internal/tray"
)

// options are the command-line settings.
type options struct {
	CameraID int
	Listen   string
	DBPath   string
	Warmup   int
	FPS      int
	MinArea  int
	Feather  int
	Mirror   bool
	Headless bool
}

func main() {
	defaults := app.DefaultConfig()

	var opts options
	flag.IntVar(&opts.CameraID, "camera", 0, "Camera device index")
	flag.StringVar(&opts.Listen, "listen", "127.0.0.1:8080", "HTTP listen address for controls and previews")
	flag.StringVar(&opts.DBPath, "db", "", "Preset database path (default ~/.cloak/cloak.db)")
	flag.IntVar(&opts.Warmup, "warmup", defaults.WarmupFrames, "Frames read when capturing the background")
	flag.IntVar(&opts.FPS, "fps", defaults.FPS, "Processing rate in frames per second")
	flag.IntVar(&opts.MinArea, "min-area", defaults.Params.MinArea, "Pixels a region must exceed to be cloaked")
	flag.IntVar(&opts.Feather, "feather", defaults.Params.FeatherSize, "Edge feathering kernel size (odd)")
	flag.BoolVar(&opts.Mirror, "mirror", true, "Flip frames horizontally")
	flag.BoolVar(&opts.Headless, "headless", false, "Run without the system tray")
	flag.Parse()

	fmt.Println("Cloak - live background replacement")

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

// run wires the store, pipeline and server and blocks until the pipeline
// stops. Everything it opens is released before it returns, including on error.
func run(opts options) error {
	if opts.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		opts.DBPath = filepath.Join(homeDir, ".cloak", "cloak.db")
	}
	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	rng := cloak.DefaultColorRange()
	if saved, err := st.Settings().ActiveRange(); err == nil {
		rng = saved
		log.Printf("Restored color range %s", rng)
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Ignoring saved color range: %v", err)
	}

	hub := server.NewFrameHub(server.DefaultJPEGQuality)
	defer hub.Close()

	cfg := app.DefaultConfig()
	cfg.CameraOptions = capture.Options{
		DeviceID: opts.CameraID,
		Width:    capture.DefaultWidth,
		Height:   capture.DefaultHeight,
		Mirror:   opts.Mirror,
	}
	cfg.FPS = opts.FPS
	cfg.WarmupFrames = opts.Warmup
	cfg.Params.MinArea = opts.MinArea
	cfg.Params.FeatherSize = opts.Feather
	cfg.Range = rng
	cfg.Sink = hub

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
		Frames:     hub,
	})

	go func() {
		fmt.Printf("Starting server on %s\n", opts.Listen)
		if err := srv.ListenAndServe(opts.Listen); err != nil {
			log.Printf("Server failed: %v", err)
			a.Signal(app.SignalQuit)
		}
	}()

	// Streams end when the hub closes, so the server can drain.
	defer func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()
	defer a.Stop()

	fmt.Println("Step out of the frame: capturing the background...")
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received %s, shutting down", sig)
			a.Signal(app.SignalQuit)
		case <-a.Done():
		}
	}()

	if opts.Headless {
		<-a.Done()
	} else {
		runTray(a, "http://"+opts.Listen)
	}

	if s := a.Status(); s.LastError != "" {
		log.Printf("Last pipeline error: %s", s.LastError)
	}
	return nil
}

// runTray shows the tray menu until the user quits or the pipeline stops.
// It must run on the main goroutine.
func runTray(a *app.App, controlsURL string) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecapture(func() { a.Signal(app.SignalRecapture) })
	t.OnSettings(func() {
		if err := openBrowser(controlsURL); err != nil {
			log.Printf("Failed to open browser: %v", err)
		}
	})
	t.OnQuit(func() { a.Signal(app.SignalQuit) })

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-a.Done():
				t.Quit()
				return
			case <-ticker.C:
				t.SetStatus(a.Status())
			}
		}
	}()

	t.Run()
	<-a.Done()
}

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.cloak/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".cloak", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
