package hand

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Options configures a full Segment, SelectHand, Count pass.
type Options struct {
	Segment SegmentConfig
	Fingers FingerConfig
	// MinArea is the smallest contour area accepted as a hand.
	MinArea float64
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		Segment: DefaultSegmentConfig(),
		Fingers: DefaultFingerConfig(),
		MinArea: MinHandArea,
	}
}

// Analyzer chains the three pipeline stages. It holds only configuration, so
// one Analyzer may serve several goroutines.
type Analyzer struct {
	segmenter *Segmenter
	counter   *FingerCounter
	minArea   float64
}

// NewAnalyzer validates opts and builds an Analyzer.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if opts.MinArea < 0 {
		return nil, fmt.Errorf("%w: min area must not be negative, got %v", ErrInvalidArgument, opts.MinArea)
	}
	seg, err := NewSegmenter(opts.Segment)
	if err != nil {
		return nil, err
	}
	counter, err := NewFingerCounter(opts.Fingers)
	if err != nil {
		return nil, err
	}
	return &Analyzer{segmenter: seg, counter: counter, minArea: opts.MinArea}, nil
}

// Options returns the analyzer configuration.
func (a *Analyzer) Options() Options {
	return Options{
		Segment: a.segmenter.Config(),
		Fingers: a.counter.Config(),
		MinArea: a.minArea,
	}
}

// Analysis is the outcome of one frame.
type Analysis struct {
	Model ColorModel
	// Mask is the skin mask. Owned by the Analysis.
	Mask *gocv.Mat
	// Boundary is nil when no hand was found.
	Boundary Boundary
	Found    bool
	Area     float64
	Result   Result
}

// Fingers returns the finger count, 0 when no hand was found.
func (a *Analysis) Fingers() int {
	if !a.Found {
		return 0
	}
	return a.Result.Count
}

// Close releases the mask and any canvas the counter allocated.
func (a *Analysis) Close() error {
	var err error
	if a.Mask != nil {
		err = a.Mask.Close()
		a.Mask = nil
	}
	if cerr := a.Result.Close(); err == nil {
		err = cerr
	}
	return err
}

// Analyze runs the pipeline on img without drawing.
func (a *Analyzer) Analyze(img gocv.Mat, model ColorModel) (*Analysis, error) {
	return a.run(img, model, nil, false)
}

// AnalyzeOnto runs the pipeline and draws the overlay onto canvas, which is
// usually img itself. Nothing is drawn when no hand is found.
func (a *Analyzer) AnalyzeOnto(img gocv.Mat, model ColorModel, canvas *gocv.Mat) (*Analysis, error) {
	if canvas == nil {
		return nil, fmt.Errorf("%w: nil canvas", ErrInvalidArgument)
	}
	return a.run(img, model, canvas, true)
}

func (a *Analyzer) run(img gocv.Mat, model ColorModel, canvas *gocv.Mat, draw bool) (*Analysis, error) {
	mask, err := a.segmenter.Segment(img, model)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	out := &Analysis{Model: model, Mask: mask}

	boundary, found, err := SelectHand(*mask, a.minArea)
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("select hand: %w", err)
	}
	if !found {
		return out, nil
	}
	out.Boundary = boundary
	out.Found = true
	out.Area = boundary.Area()

	var res Result
	if draw {
		res, err = a.counter.Count(boundary, canvas)
	} else {
		res, err = a.counter.Measure(boundary)
	}
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("count fingers: %w", err)
	}
	out.Result = res
	return out, nil
}
