package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feed"
)

// run is the capture loop. It ticks at the configured rate until stop closes.
func (a *App) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := a.Tick(); err != nil {
				a.log.WithError(err).Debug("frame skipped")
			}
		}
	}
}

// Tick processes one frame:
//
//  1. read a frame from the camera
//  2. count fingers, unless counting is disabled
//  3. draw the HUD
//  4. encode and publish the annotated frame
//
// Detection errors are logged and the frame is published without a count.
// Tick must not be called concurrently.
func (a *App) Tick() (feed.Snapshot, error) {
	snap, frame, err := a.Render()
	if err != nil {
		return snap, err
	}
	frame.Close()
	return snap, nil
}

// Render is Tick that also hands back the annotated frame, which the caller
// must close.
func (a *App) Render() (feed.Snapshot, gocv.Mat, error) {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return feed.Snapshot{}, gocv.Mat{}, fmt.Errorf("read frame: %w", err)
	}

	enabled := a.Enabled()
	var det *detector.Detection
	if enabled {
		det, err = a.detector.Detect(frame)
		if err != nil {
			a.log.WithError(err).Warn("detection failed")
			det = nil
		}
	}

	fps := a.fps.Tick()
	hud := HUD{FPS: fps, Paused: !enabled, Hint: a.config.Hint}
	if det != nil {
		hud.Fingers = det.Fingers
	}
	hud.Draw(frame, det)
	det.Release()

	jpeg, err := encodeJPEG(*frame)
	if err != nil {
		frame.Close()
		return feed.Snapshot{}, gocv.Mat{}, fmt.Errorf("encode frame: %w", err)
	}

	snap := a.hub.Publish(feed.Snapshot{
		JPEG:      jpeg,
		Detection: det,
		Enabled:   enabled,
		FPS:       fps,
	})

	if snap.Seq%uint64(a.config.FPS*10) == 0 {
		a.log.WithFields(logrus.Fields{
			"seq":     snap.Seq,
			"fingers": snap.Fingers(),
			"fps":     fps,
		}).Debug("pipeline heartbeat")
	}

	a.mu.RLock()
	listener := a.listener
	a.mu.RUnlock()
	if listener != nil {
		listener(snap)
	}
	return snap, *frame, nil
}
