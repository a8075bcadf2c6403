package app

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// Mask preview placement, in frame pixels.
var (
	MaskInset      = image.Rect(470, 10, 630, 130)
	maskLabelPoint = image.Pt(475, 145)
)

var (
	countColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	fpsColor   = color.RGBA{R: 0, G: 255, B: 255, A: 0}
	whiteColor = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	hintColor  = color.RGBA{R: 200, G: 200, B: 200, A: 0}
	pauseColor = color.RGBA{R: 255, G: 64, B: 64, A: 0}
)

// DefaultHint is the bottom line of the HUD.
const DefaultHint = "Press 'q' to quit, 's' to save"

// HUD is the per-frame state drawn on top of the camera image.
type HUD struct {
	Fingers int
	FPS     float64
	Paused  bool
	Hint    string
}

// Draw renders the overlay geometry, the counters, the mask preview and the
// hint onto canvas. det may be nil.
func (h HUD) Draw(canvas *gocv.Mat, det *detector.Detection) {
	if canvas == nil || canvas.Empty() {
		return
	}

	if det != nil && det.Found {
		det.Overlay.Draw(canvas)
	}

	gocv.PutText(canvas, fmt.Sprintf("Fingers: %d", h.Fingers), image.Pt(10, 30),
		gocv.FontHersheySimplex, 1, countColor, 2)
	gocv.PutText(canvas, fmt.Sprintf("FPS: %.1f", h.FPS), image.Pt(10, 70),
		gocv.FontHersheySimplex, 0.7, fpsColor, 2)

	if h.Paused {
		gocv.PutText(canvas, "PAUSED", image.Pt(10, 110),
			gocv.FontHersheySimplex, 0.8, pauseColor, 2)
	}

	if det != nil && det.Mask != nil {
		drawMaskInset(canvas, *det.Mask)
	}

	if h.Hint != "" {
		gocv.PutText(canvas, h.Hint, image.Pt(10, canvas.Rows()-20),
			gocv.FontHersheySimplex, 0.6, hintColor, 1)
	}
}

// drawMaskInset pastes a reduced copy of mask into the top-right corner.
// Frames too small to hold the inset are left alone.
func drawMaskInset(canvas *gocv.Mat, mask gocv.Mat) {
	if mask.Empty() || canvas.Cols() < MaskInset.Max.X || canvas.Rows() < maskLabelPoint.Y {
		return
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(mask, &small, image.Pt(MaskInset.Dx(), MaskInset.Dy()), 0, 0, gocv.InterpolationLinear)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.CvtColor(small, &colored, gocv.ColorGrayToBGR)

	roi := canvas.Region(MaskInset)
	colored.CopyTo(&roi)
	roi.Close()

	gocv.Rectangle(canvas, MaskInset, whiteColor, 2)
	gocv.PutText(canvas, "Skin Mask", maskLabelPoint, gocv.FontHersheySimplex, 0.5, whiteColor, 1)
}

// DrawSaved stamps the screenshot confirmation onto canvas.
func DrawSaved(canvas *gocv.Mat) {
	gocv.PutText(canvas, "SAVED!", image.Pt(250, 240), gocv.FontHersheySimplex, 2, countColor, 3)
}

// FPSMeter reports frames per second averaged over every Window frames.
type FPSMeter struct {
	Window int

	frames int
	start  time.Time
	fps    float64
	now    func() time.Time
}

// NewFPSMeter returns a meter that refreshes every window frames.
func NewFPSMeter(window int) *FPSMeter {
	if window <= 0 {
		window = 10
	}
	return &FPSMeter{Window: window, now: time.Now}
}

// Tick records one frame and returns the current rate.
func (m *FPSMeter) Tick() float64 {
	now := m.now()
	if m.start.IsZero() {
		m.start = now
	}
	m.frames++
	if m.frames%m.Window == 0 {
		if elapsed := now.Sub(m.start).Seconds(); elapsed > 0 {
			m.fps = float64(m.Window) / elapsed
		}
		m.start = now
	}
	return m.fps
}

// FPS returns the last computed rate.
func (m *FPSMeter) FPS() float64 {
	return m.fps
}
