package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/dactyl/internal/app"
	"github.com/ayusman/dactyl/internal/capture"
	"github.com/ayusman/dactyl/internal/classifier"
	"github.com/ayusman/dactyl/internal/config"
	"github.com/ayusman/dactyl/internal/server"
	"github.com/ayusman/dactyl/internal/store"
	"github.com/ayusman/dactyl/internal/tray"
)

func main() {
	if err := run(); err != nil {
		slog.Error("dactyl exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	camCfg := capture.DefaultConfig(cfg.CameraID)
	camCfg.FPS = cfg.FrameRate

	a := app.New(app.Config{
		Store:         st,
		PluginDir:     cfg.PluginDir,
		PluginTimeout: cfg.PluginTimeout,
		Camera:        camCfg,
		Confirm:       cfg.Confirm(),
		Model: classifier.LoadConfig{
			Path:         cfg.ModelPath,
			RunnerScript: cfg.RunnerScript,
		},
		LabelsPath:   cfg.LabelsPath,
		MockDetector: cfg.MockDetector,
		Logger:       logger,
	})
	defer a.Close()

	// A missing model is not fatal: frames report it until a reload succeeds.
	if err := a.LoadModel(); err != nil {
		logger.Warn("starting without a model", "error", err)
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		logger.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       a,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(cfg.HTTPAddr)
	}()

	if cfg.Tray {
		runTray(ctx, a, cfg.HTTPAddr, logger)
	} else {
		select {
		case <-ctx.Done():
		case err := <-srvErr:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("server shutdown", "error", err)
	}
	return nil
}

// runTray blocks on the tray menu until Quit is clicked or ctx ends. The tray
// must own the main goroutine.
func runTray(ctx context.Context, a *app.App, addr string, logger *slog.Logger) {
	t := tray.New()
	t.OnToggle(func(run bool) error {
		if !run {
			a.Stop()
			return nil
		}
		if err := a.Start(); err != nil {
			logger.Error("starting capture", "error", err)
			return err
		}
		return nil
	})
	t.OnOpen(func() {
		if err := openBrowser(localURL(addr)); err != nil {
			logger.Warn("opening browser", "error", err)
		}
	})
	a.OnCapture(func(c app.Capture) {
		t.SetLastLetter(c.Letter)
	})

	// Keep the menu in step with starts and stops made through the API.
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case <-ticker.C:
				if running := a.Running(); running != t.IsRunning() {
					t.SetRunning(running)
				}
			}
		}
	}()

	t.Run()
}

func localURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

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
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
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

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
