// Package app provides the main application logic for the Mudra finger counting system.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feed"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/store"
)

// FPSWindow is the number of frames the displayed rate is averaged over.
const FPSWindow = 10

// ErrNoFrame is returned by SaveScreenshot before the first frame is published.
var ErrNoFrame = errors.New("no frame captured yet")

// Config holds configuration options for the application.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector
	// Store persists settings and screenshots. Optional.
	Store *store.Store
	// Hub receives every annotated frame. A new one is created when nil.
	Hub           *feed.Hub
	ScreenshotDir string
	FPS           int
	Hint          string
	Logger        logrus.FieldLogger
}

// modelSwitcher is implemented by detectors whose color model can change at runtime.
type modelSwitcher interface {
	Model() hand.ColorModel
	SetModel(hand.ColorModel) error
}

// App is the main application that reads frames, counts fingers and
// publishes annotated frames.
type App struct {
	config   Config
	camera   capture.Camera
	detector detector.Detector
	hub      *feed.Hub
	log      logrus.FieldLogger

	mu       sync.RWMutex
	enabled  bool
	model    hand.ColorModel
	listener func(feed.Snapshot)
	stopCh   chan struct{}
	doneCh   chan struct{}

	// fps is only touched by the goroutine running Tick.
	fps *FPSMeter

	shotMu sync.Mutex
}

// New creates a new App and restores persisted settings.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, fmt.Errorf("%w: camera is required", hand.ErrInvalidArgument)
	}
	if config.Detector == nil {
		return nil, fmt.Errorf("%w: detector is required", hand.ErrInvalidArgument)
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.Hint == "" {
		config.Hint = DefaultHint
	}
	if config.Hub == nil {
		config.Hub = feed.NewHub()
	}
	log := config.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}

	a := &App{
		config:   config,
		camera:   config.Camera,
		detector: config.Detector,
		hub:      config.Hub,
		log:      log.WithField("component", "app"),
		enabled:  true,
		model:    hand.ModelYCrCb,
		fps:      NewFPSMeter(FPSWindow),
	}
	if sw, ok := a.detector.(modelSwitcher); ok {
		a.model = sw.Model()
	}

	if err := a.restoreSettings(); err != nil {
		return nil, err
	}
	return a, nil
}

// restoreSettings applies the enabled flag and color model saved in the store.
func (a *App) restoreSettings() error {
	if a.config.Store == nil {
		return nil
	}
	settings := a.config.Store.Settings()

	if v, err := settings.Get(store.SettingEnabled); err == nil {
		enabled, perr := strconv.ParseBool(v)
		if perr != nil {
			a.log.WithField("value", v).Warn("ignoring invalid stored enabled flag")
		} else {
			a.enabled = enabled
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load settings: %w", err)
	}

	if v, err := settings.Get(store.SettingColorModel); err == nil {
		m, perr := hand.ParseColorModel(v)
		if perr != nil {
			a.log.WithField("value", v).Warn("ignoring invalid stored color model")
		} else if err := a.applyModel(m); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load settings: %w", err)
	}
	return nil
}

func (a *App) applyModel(m hand.ColorModel) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unsupported color model %d", hand.ErrInvalidArgument, int(m))
	}
	if sw, ok := a.detector.(modelSwitcher); ok {
		if err := sw.SetModel(m); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.model = m
	a.mu.Unlock()
	return nil
}

// SetEnabled enables or disables finger counting. Frames keep streaming
// while disabled.
func (a *App) SetEnabled(enabled bool) error {
	a.mu.Lock()
	changed := a.enabled != enabled
	a.enabled = enabled
	a.mu.Unlock()

	if changed {
		a.log.WithField("enabled", enabled).Info("counting toggled")
	}
	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingEnabled, strconv.FormatBool(enabled)); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	return nil
}

// Enabled reports whether finger counting is on.
func (a *App) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetColorModel switches the skin model and persists the choice.
func (a *App) SetColorModel(m hand.ColorModel) error {
	if err := a.applyModel(m); err != nil {
		return err
	}
	if a.config.Store != nil {
		if err := a.config.Store.Settings().Set(store.SettingColorModel, m.String()); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	}
	return nil
}

// ColorModel returns the active skin model.
func (a *App) ColorModel() hand.ColorModel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// OnFrame registers fn to be called after every published frame. fn runs on
// the capture goroutine and must not block.
func (a *App) OnFrame(fn func(feed.Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = fn
}

// Start opens the camera and begins the frame loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.run(a.stopCh, a.doneCh)

	a.log.WithFields(logrus.Fields{
		"fps":   a.config.FPS,
		"model": a.model.String(),
	}).Info("capture loop started")
	return nil
}

// Stop halts the frame loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("error closing camera")
	}
	if err := a.detector.Close(); err != nil {
		a.log.WithError(err).Warn("error closing detector")
	}
	a.log.Info("capture loop stopped")
}

// Running reports whether the frame loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Hub returns the feed annotated frames are published to.
func (a *App) Hub() *feed.Hub {
	return a.hub
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the detector instance.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// SaveScreenshot writes the latest annotated frame to the screenshot
// directory as screenshot_NNN.jpg, numbering on from the screenshots already
// recorded.
func (a *App) SaveScreenshot() (*store.Screenshot, error) {
	snap, ok := a.hub.Latest()
	if !ok || len(snap.JPEG) == 0 {
		return nil, ErrNoFrame
	}

	a.shotMu.Lock()
	defer a.shotMu.Unlock()

	dir := a.config.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	n, err := a.nextScreenshotNumber(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("screenshot_%03d.jpg", n))
	if err := os.WriteFile(path, snap.JPEG, 0o644); err != nil {
		return nil, fmt.Errorf("write screenshot: %w", err)
	}

	sc := &store.Screenshot{
		ID:        uuid.New().String(),
		Path:      path,
		Fingers:   snap.Fingers(),
		CreatedAt: time.Now(),
	}
	if a.config.Store != nil {
		if err := a.config.Store.Screenshots().Create(sc); err != nil {
			return nil, fmt.Errorf("record screenshot: %w", err)
		}
	}

	a.log.WithFields(logrus.Fields{"path": path, "fingers": sc.Fingers}).Info("screenshot saved")
	return sc, nil
}

// nextScreenshotNumber continues after the recorded screenshot count and
// skips numbers whose file already exists.
func (a *App) nextScreenshotNumber(dir string) (int, error) {
	n := 1
	if a.config.Store != nil {
		count, err := a.config.Store.Screenshots().Count()
		if err != nil {
			return 0, fmt.Errorf("count screenshots: %w", err)
		}
		n = count + 1
	}
	for {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("screenshot_%03d.jpg", n)))
		if errors.Is(err, os.ErrNotExist) {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

// encodeJPEG copies the encoded frame out of native memory.
func encodeJPEG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}
