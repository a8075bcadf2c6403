package detector

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/hand"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// SkinDetector implements Detector with the skin segmentation and convexity
// defect pipeline. It is safe for concurrent use; the color model may be
// switched while frames are being analyzed.
type SkinDetector struct {
	analyzer *hand.Analyzer
	model    atomic.Int32
	log      logrus.FieldLogger
}

// NewSkinDetector validates config and builds a SkinDetector.
func NewSkinDetector(config Config, log logrus.FieldLogger) (*SkinDetector, error) {
	if !config.Model.Valid() {
		return nil, fmt.Errorf("%w: unsupported color model %d", hand.ErrInvalidArgument, int(config.Model))
	}
	analyzer, err := hand.NewAnalyzer(config.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	d := &SkinDetector{
		analyzer: analyzer,
		log:      log.WithField("component", "detector"),
	}
	d.model.Store(int32(config.Model))
	return d, nil
}

// Model returns the active color model.
func (d *SkinDetector) Model() hand.ColorModel {
	return hand.ColorModel(d.model.Load())
}

// SetModel switches the color model used by subsequent frames.
func (d *SkinDetector) SetModel(m hand.ColorModel) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unsupported color model %d", hand.ErrInvalidArgument, int(m))
	}
	if prev := hand.ColorModel(d.model.Swap(int32(m))); prev != m {
		d.log.WithFields(logrus.Fields{"from": prev.String(), "to": m.String()}).Info("color model changed")
	}
	return nil
}

// Options returns the pipeline configuration.
func (d *SkinDetector) Options() hand.Options {
	return d.analyzer.Options()
}

// Detect runs the pipeline on frame.
func (d *SkinDetector) Detect(frame *gocv.Mat) (*Detection, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", hand.ErrInvalidArgument)
	}

	start := time.Now()
	analysis, err := d.analyzer.Analyze(*frame, d.Model())
	if err != nil {
		return nil, fmt.Errorf("analyze frame: %w", err)
	}
	defer analysis.Close()

	det := newDetection(analysis, frame.Cols(), frame.Rows())
	det.Elapsed = time.Since(start)

	d.log.WithFields(logrus.Fields{
		"found":   det.Found,
		"fingers": det.Fingers,
		"defects": det.Defects,
		"elapsed": det.Elapsed,
	}).Debug("frame analyzed")
	return det, nil
}

// Close is a no-op; the pipeline holds no native resources between frames.
func (d *SkinDetector) Close() error {
	return nil
}
