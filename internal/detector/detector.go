package detector

import (
	"github.com/ayusman/mudra/internal/hand"
	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the finger count with its
	// geometry. A frame without a hand yields a Detection with Found false.
	// The caller must Release the returned Detection.
	Detect(frame *gocv.Mat) (*Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// Model is the skin color model used for segmentation.
	Model hand.ColorModel

	// Pipeline holds the segmentation, area and valley thresholds.
	Pipeline hand.Options
}

// DefaultConfig returns a Config with the YCrCb model and default thresholds.
func DefaultConfig() Config {
	return Config{
		Model:    hand.ModelYCrCb,
		Pipeline: hand.DefaultOptions(),
	}
}
