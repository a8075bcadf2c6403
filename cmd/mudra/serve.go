package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feed"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "HTTP listen address")
	source := fs.String("source", "", "image or video file to play instead of the camera")
	noCapture := fs.Bool("no-capture", false, "serve the API without live capture")
	withTray := fs.Bool("tray", cfg.Tray, "show the system tray menu")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.WithField("path", st.Path()).Info("store opened")

	analyzer, err := hand.NewAnalyzer(cfg.AnalyzerOptions())
	if err != nil {
		return err
	}

	srvCfg := server.Config{
		StaticDir: findWebDir(cfg),
		Store:     st,
		Analyzer:  analyzer,
		Logger:    log,
	}
	if srvCfg.StaticDir != "" {
		log.WithField("dir", srvCfg.StaticDir).Info("serving static files")
	}

	var application *app.App
	if !*noCapture {
		application, err = newApp(cfg, log, st, *source, "mudra "+viewerURL(*addr))
		if err != nil {
			return err
		}
		if err := application.Start(); err != nil {
			return fmt.Errorf("start capture: %w", err)
		}
		defer application.Stop()

		srvCfg.Feed = application.Hub()
		srvCfg.Controller = application
		srvCfg.Screenshots = application
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(srvCfg).Run(gctx, *addr)
	})

	if *withTray && application != nil {
		tr := newTray(application, *addr, log)
		g.Go(func() error {
			<-gctx.Done()
			tr.Quit()
			return nil
		})
		// systray needs the main goroutine on some platforms.
		tr.Run()
		cancel()
	}

	return g.Wait()
}

// newApp builds the capture pipeline for serve and window.
func newApp(cfg *config.Config, log *logrus.Logger, st *store.Store, source, hint string) (*app.App, error) {
	model, err := cfg.Model()
	if err != nil {
		return nil, err
	}
	det, err := detector.NewSkinDetector(detector.Config{Model: model, Pipeline: cfg.AnalyzerOptions()}, log)
	if err != nil {
		return nil, err
	}

	return app.New(app.Config{
		Camera:        openSource(cfg, source),
		Detector:      det,
		Store:         st,
		Hub:           feed.NewHub(),
		ScreenshotDir: cfg.ScreenshotDir(),
		FPS:           cfg.FPS,
		Hint:          hint,
		Logger:        log,
	})
}

// openSource returns the configured camera, or a file player when source is set.
func openSource(cfg *config.Config, source string) capture.Camera {
	opts := capture.Options{
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
		FPS:    cfg.FPS,
		Mirror: cfg.Mirror,
	}
	if source == "" {
		return capture.NewCamera(cfg.CameraID, opts)
	}
	opts.Mirror = false
	return capture.NewFileSource(source, opts, true)
}

func newTray(application *app.App, addr string, log *logrus.Logger) *tray.Tray {
	tr := tray.New(application.Enabled())
	tr.OnToggle(func(enabled bool) {
		if err := application.SetEnabled(enabled); err != nil {
			log.WithError(err).Error("failed to toggle counting")
		}
	})
	tr.OnScreenshot(func() {
		if _, err := application.SaveScreenshot(); err != nil {
			log.WithError(err).Warn("failed to save screenshot")
		}
	})
	tr.OnOpenViewer(func() {
		if err := openBrowser(viewerURL(addr)); err != nil {
			log.WithError(err).Warn("failed to open viewer")
		}
	})
	application.OnFrame(func(s feed.Snapshot) {
		tr.SetFingers(s.Fingers())
	})
	return tr
}

func viewerURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
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

// findWebDir returns the first existing directory among the configured web
// dir, "../web" and <data dir>/web, or "" when none exists.
func findWebDir(cfg *config.Config) string {
	candidates := []string{cfg.WebDir, "../web", filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
