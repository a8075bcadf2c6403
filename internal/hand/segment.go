package hand

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// SegmentConfig controls the noise cleanup applied after thresholding.
type SegmentConfig struct {
	// BlurSize is the Gaussian blur neighborhood. Must be odd and positive.
	BlurSize int
	// KernelSize is the elliptical structuring element size. Must be odd and positive.
	KernelSize int
	// Iterations is applied to both the opening and the closing.
	Iterations int
}

// DefaultSegmentConfig returns the 5x5 blur, 5x5 ellipse, 2 iteration setup.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		BlurSize:   DefaultBlurSize,
		KernelSize: DefaultKernelSize,
		Iterations: DefaultMorphIterations,
	}
}

// Validate checks kernel sizes and iteration counts.
func (c SegmentConfig) Validate() error {
	if c.BlurSize <= 0 || c.BlurSize%2 == 0 {
		return fmt.Errorf("%w: blur size must be odd and positive, got %d", ErrInvalidArgument, c.BlurSize)
	}
	if c.KernelSize <= 0 || c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel size must be odd and positive, got %d", ErrInvalidArgument, c.KernelSize)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: morphology iterations must be at least 1, got %d", ErrInvalidArgument, c.Iterations)
	}
	return nil
}

// Segmenter turns a BGR frame into a binary skin mask.
type Segmenter struct {
	cfg SegmentConfig
}

// NewSegmenter validates cfg and returns a Segmenter.
func NewSegmenter(cfg SegmentConfig) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Config returns the segmenter configuration.
func (s *Segmenter) Config() SegmentConfig {
	return s.cfg
}

// Segment returns a mask of the same size as img where skin pixels are 255
// and everything else is 0. The caller must close the returned Mat.
//
// Algorithm:
// 1. Convert BGR to the model's color space
// 2. Keep pixels whose three channels all lie in the model bounds (inclusive)
// 3. Gaussian blur with a zero-padded border
// 4. Opening (erode then dilate) to drop small blobs
// 5. Closing (dilate then erode) to fill small holes
// 6. Binarize: any non-zero pixel becomes 255
func (s *Segmenter) Segment(img gocv.Mat, model ColorModel) (*gocv.Mat, error) {
	bounds, err := model.Bounds()
	if err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidArgument)
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: expected 8-bit 3-channel image, got type %v", ErrInvalidArgument, img.Type())
	}

	converted := gocv.NewMat()
	defer converted.Close()
	if err := gocv.CvtColor(img, &converted, model.conversion()); err != nil {
		return nil, fmt.Errorf("convert to %s: %w", model, err)
	}

	inRange := gocv.NewMat()
	defer inRange.Close()
	if err := gocv.InRangeWithScalar(converted, boundScalar(bounds.Lower), boundScalar(bounds.Upper), &inRange); err != nil {
		return nil, fmt.Errorf("skin threshold: %w", err)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := gocv.GaussianBlur(inRange, &blurred, image.Pt(s.cfg.BlurSize, s.cfg.BlurSize), 0, 0, gocv.BorderConstant); err != nil {
		return nil, fmt.Errorf("blur: %w", err)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(s.cfg.KernelSize, s.cfg.KernelSize))
	defer kernel.Close()

	opened, err := s.open(blurred, kernel)
	if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer opened.Close()

	closed, err := s.close(opened, kernel)
	if err != nil {
		return nil, fmt.Errorf("closing: %w", err)
	}
	defer closed.Close()

	mask := gocv.NewMat()
	gocv.Threshold(closed, &mask, 0, 255, gocv.ThresholdBinary)
	return &mask, nil
}

// open erodes Iterations times, then dilates Iterations times.
func (s *Segmenter) open(src gocv.Mat, kernel gocv.Mat) (gocv.Mat, error) {
	eroded, err := repeat(src, s.cfg.Iterations, func(in gocv.Mat, out *gocv.Mat) error { return gocv.Erode(in, out, kernel) })
	if err != nil {
		return eroded, err
	}
	defer eroded.Close()
	return repeat(eroded, s.cfg.Iterations, func(in gocv.Mat, out *gocv.Mat) error { return gocv.Dilate(in, out, kernel) })
}

// close dilates Iterations times, then erodes Iterations times.
func (s *Segmenter) close(src gocv.Mat, kernel gocv.Mat) (gocv.Mat, error) {
	dilated, err := repeat(src, s.cfg.Iterations, func(in gocv.Mat, out *gocv.Mat) error { return gocv.Dilate(in, out, kernel) })
	if err != nil {
		return dilated, err
	}
	defer dilated.Close()
	return repeat(dilated, s.cfg.Iterations, func(in gocv.Mat, out *gocv.Mat) error { return gocv.Erode(in, out, kernel) })
}

// repeat applies op n times starting from a copy of src. The result is a new
// Mat; on error it is already closed.
func repeat(src gocv.Mat, n int, op func(in gocv.Mat, out *gocv.Mat) error) (gocv.Mat, error) {
	cur := src.Clone()
	for i := 0; i < n; i++ {
		next := gocv.NewMat()
		err := op(cur, &next)
		cur.Close()
		if err != nil {
			next.Close()
			return next, err
		}
		cur = next
	}
	return cur, nil
}

func boundScalar(v [3]uint8) gocv.Scalar {
	return gocv.NewScalar(float64(v[0]), float64(v[1]), float64(v[2]), 0)
}
