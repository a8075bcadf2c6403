package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/store"
)

const windowHint = "Press 'q' to quit, 's' to save, 'm' to switch model"

func runWindow(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("window", flag.ContinueOnError)
	source := fs.String("source", "", "image or video file to play instead of the camera")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	application, err := newApp(cfg, log, st, *source, windowHint)
	if err != nil {
		return err
	}
	if err := application.Camera().Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer application.Stop()

	window := gocv.NewWindow("Finger Counting Demo")
	defer window.Close()

	log.Info("window opened; press 'q' to quit")
	for ctx.Err() == nil {
		_, frame, err := application.Render()
		if err != nil {
			if errors.Is(err, capture.ErrNoFrame) || errors.Is(err, capture.ErrCameraNotOpen) {
				return err
			}
			log.WithError(err).Warn("frame skipped")
			continue
		}

		window.IMShow(frame)
		key := window.WaitKey(1) & 0xFF

		switch key {
		case 'q':
			frame.Close()
			log.Info("quit key pressed")
			return nil
		case 's':
			sc, err := application.SaveScreenshot()
			if err != nil {
				log.WithError(err).Warn("failed to save screenshot")
				break
			}
			log.WithField("path", sc.Path).Info("screenshot saved")
			app.DrawSaved(&frame)
			window.IMShow(frame)
			window.WaitKey(500)
		case 'm':
			next := hand.ModelHSV
			if application.ColorModel() == hand.ModelHSV {
				next = hand.ModelYCrCb
			}
			if err := application.SetColorModel(next); err != nil {
				log.WithError(err).Warn("failed to switch color model")
			}
		}
		frame.Close()
	}
	return nil
}
