// Package hand implements the per-frame finger counting pipeline: skin
// segmentation, hand contour selection, and convex hull defect analysis.
//
// Every stage is a pure function of its input. Nothing is cached between
// frames, so independent frames may be analyzed concurrently without locking.
// Native gocv.Mat values returned by this package are owned by the caller and
// must be closed.
package hand

import "errors"

var (
	// ErrInvalidArgument is returned for unsupported color models, malformed
	// kernel sizes, and images or masks of the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientGeometry is returned when a boundary with fewer than three
	// points reaches the finger counter. SelectHand never produces one.
	ErrInsufficientGeometry = errors.New("insufficient geometry")
)

// Pipeline defaults.
const (
	// DefaultBlurSize is the Gaussian blur neighborhood (5x5).
	DefaultBlurSize = 5
	// DefaultKernelSize is the elliptical structuring element size (5x5).
	DefaultKernelSize = 5
	// DefaultMorphIterations is applied to both the opening and the closing.
	DefaultMorphIterations = 2
	// MinHandArea is the smallest contour area, in squared pixels, accepted as a hand.
	MinHandArea = 1000.0
	// DefaultDepthThreshold is the minimum defect depth in pixels for a finger valley.
	DefaultDepthThreshold = 20.0
	// DefaultAngleThreshold is the maximum valley angle in degrees.
	DefaultAngleThreshold = 90.0
	// MaxFingers caps the reported count.
	MaxFingers = 5
	// DefaultCanvasWidth and DefaultCanvasHeight size the overlay canvas
	// allocated when the caller supplies none.
	DefaultCanvasWidth  = 640
	DefaultCanvasHeight = 480
)

// depthScale converts the fixed-point defect depth reported by OpenCV to pixels.
const depthScale = 256.0
