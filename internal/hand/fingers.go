package hand

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// FingerConfig holds the valley classification thresholds.
type FingerConfig struct {
	// DepthThreshold is the exclusive minimum defect depth in pixels.
	DepthThreshold float64
	// AngleThreshold is the exclusive maximum valley angle in degrees.
	AngleThreshold float64
	// MaxFingers caps the count.
	MaxFingers int
}

// DefaultFingerConfig returns depth > 20px, angle < 90 degrees, at most 5 fingers.
func DefaultFingerConfig() FingerConfig {
	return FingerConfig{
		DepthThreshold: DefaultDepthThreshold,
		AngleThreshold: DefaultAngleThreshold,
		MaxFingers:     MaxFingers,
	}
}

// Validate checks the thresholds.
func (c FingerConfig) Validate() error {
	if c.DepthThreshold < 0 {
		return fmt.Errorf("%w: depth threshold must not be negative, got %v", ErrInvalidArgument, c.DepthThreshold)
	}
	if c.AngleThreshold <= 0 || c.AngleThreshold > 180 {
		return fmt.Errorf("%w: angle threshold must be in (0,180], got %v", ErrInvalidArgument, c.AngleThreshold)
	}
	if c.MaxFingers < 1 {
		return fmt.Errorf("%w: max fingers must be at least 1, got %d", ErrInvalidArgument, c.MaxFingers)
	}
	return nil
}

// Valley is a defect accepted as the gap between two raised fingers.
type Valley struct {
	Defect Defect
	Start  image.Point
	End    image.Point
	Far    image.Point
	// Angle is the interior angle at Far, in degrees.
	Angle float64
}

// Result is the outcome of counting fingers on one boundary.
type Result struct {
	Count   int
	Hull    Hull
	Defects []Defect
	Valleys []Valley
	Overlay Overlay

	// Canvas is the image the overlay was drawn on, nil for Measure.
	Canvas     *gocv.Mat
	ownsCanvas bool
}

// Close releases the canvas if the counter allocated it. A caller supplied
// canvas is left alone.
func (r *Result) Close() error {
	if r.ownsCanvas && r.Canvas != nil {
		err := r.Canvas.Close()
		r.Canvas = nil
		r.ownsCanvas = false
		return err
	}
	return nil
}

// FingerCounter classifies hull defects of a hand boundary as finger valleys.
type FingerCounter struct {
	cfg FingerConfig
}

// NewFingerCounter validates cfg and returns a FingerCounter.
func NewFingerCounter(cfg FingerConfig) (*FingerCounter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FingerCounter{cfg: cfg}, nil
}

// Config returns the counter thresholds.
func (c *FingerCounter) Config() FingerConfig {
	return c.cfg
}

// Count measures b and draws the overlay onto canvas. When canvas is nil a
// 640x480 black canvas is allocated and returned in Result.Canvas; release it
// with Result.Close.
func (c *FingerCounter) Count(b Boundary, canvas *gocv.Mat) (Result, error) {
	res, err := c.Measure(b)
	if err != nil {
		return Result{}, err
	}
	res.attachCanvas(canvas)
	return res, nil
}

// CountWithHull is Count with a caller supplied hull in either index or point
// form. Both forms of the same hull produce the same result.
func (c *FingerCounter) CountWithHull(b Boundary, hull Hull, canvas *gocv.Mat) (Result, error) {
	res, err := c.MeasureWithHull(b, hull)
	if err != nil {
		return Result{}, err
	}
	res.attachCanvas(canvas)
	return res, nil
}

// Measure is Count without drawing.
func (c *FingerCounter) Measure(b Boundary) (Result, error) {
	if !b.Valid() {
		return Result{}, fmt.Errorf("%w: boundary has %d points", ErrInsufficientGeometry, len(b))
	}
	hull, err := ComputeHull(b)
	if err != nil {
		return Result{}, err
	}
	return c.measure(b, hull)
}

// MeasureWithHull is CountWithHull without drawing.
func (c *FingerCounter) MeasureWithHull(b Boundary, hull Hull) (Result, error) {
	if !b.Valid() {
		return Result{}, fmt.Errorf("%w: boundary has %d points", ErrInsufficientGeometry, len(b))
	}
	hull, err := hull.normalize(b)
	if err != nil {
		return Result{}, err
	}
	return c.measure(b, hull)
}

// measure runs the classification:
// 1. Fewer than 4 hull vertices: count 0
// 2. No defects: count 0
// 3. Each defect with depth > DepthThreshold and angle < AngleThreshold is a valley
// 4. count = min(valleys+1, MaxFingers), so defects without any valley give 1
func (c *FingerCounter) measure(b Boundary, hull Hull) (Result, error) {
	res := Result{
		Hull:    hull,
		Overlay: Overlay{Boundary: b, Hull: hull.Points},
	}

	if hull.Len() < 4 {
		return res, nil
	}

	defects, err := ComputeDefects(b, hull)
	if err != nil {
		return Result{}, err
	}
	res.Defects = defects
	if len(defects) == 0 {
		return res, nil
	}

	res.Valleys, res.Count = c.classify(b, defects)
	res.Overlay.Valleys = res.Valleys
	return res, nil
}

// Valleys returns the defects that qualify as finger valleys, in input order.
// Defects whose indices fall outside b are ignored.
func (c *FingerCounter) Valleys(b Boundary, defects []Defect) []Valley {
	var valleys []Valley
	for _, d := range defects {
		if !inRange(d.Start, len(b)) || !inRange(d.End, len(b)) || !inRange(d.Far, len(b)) {
			continue
		}
		start, end, far := b[d.Start], b[d.End], b[d.Far]
		angle, ok := farAngle(start, end, far)
		if !ok {
			continue
		}
		if d.Depth > c.cfg.DepthThreshold && angle < c.cfg.AngleThreshold {
			valleys = append(valleys, Valley{
				Defect: d,
				Start:  start,
				End:    end,
				Far:    far,
				Angle:  angle,
			})
		}
	}
	return valleys
}

// classify picks the valleys among defects and converts them to a count.
// An empty defect list counts as 0.
func (c *FingerCounter) classify(b Boundary, defects []Defect) ([]Valley, int) {
	if len(defects) == 0 {
		return nil, 0
	}
	valleys := c.Valleys(b, defects)
	return valleys, c.fingersFromValleys(len(valleys))
}

// fingersFromValleys converts N valleys to N+1 raised fingers, capped.
func (c *FingerCounter) fingersFromValleys(valleys int) int {
	return min(valleys+1, c.cfg.MaxFingers)
}

func (r *Result) attachCanvas(canvas *gocv.Mat) {
	if canvas == nil {
		m := gocv.NewMatWithSize(DefaultCanvasHeight, DefaultCanvasWidth, gocv.MatTypeCV8UC3)
		m.SetTo(gocv.NewScalar(0, 0, 0, 0))
		canvas = &m
		r.ownsCanvas = true
	}
	r.Canvas = canvas
	r.Overlay.Draw(canvas)
}

// farAngle returns the interior angle at far, in degrees, using the law of
// cosines. It reports false when far coincides with start or end.
func farAngle(start, end, far image.Point) (float64, bool) {
	a := distance(start, end)
	b := distance(start, far)
	c := distance(end, far)
	if b == 0 || c == 0 {
		return 0, false
	}
	cos := (b*b + c*c - a*a) / (2 * b * c)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}
