package hand

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Overlay colors. gocv takes RGBA and converts to BGR internally.
var (
	BoundaryColor = color.RGBA{G: 255, A: 255}
	HullColor     = color.RGBA{R: 255, A: 255}
	FarColor      = color.RGBA{B: 255, A: 255}
	StartColor    = color.RGBA{G: 255, B: 255, A: 255}
)

const (
	farRadius   = 5
	startRadius = 8
	lineWidth   = 2
)

// Overlay is the debugging drawing of one counting pass.
type Overlay struct {
	Boundary Boundary
	Hull     []image.Point
	Valleys  []Valley
}

// Draw paints the boundary in green, the hull in red, a blue dot on each
// valley far point and a cyan dot on each valley start point.
func (o Overlay) Draw(canvas *gocv.Mat) {
	if canvas == nil || canvas.Empty() {
		return
	}
	if len(o.Boundary) > 0 {
		drawPolygon(canvas, o.Boundary, BoundaryColor)
	}
	if len(o.Hull) > 0 {
		drawPolygon(canvas, o.Hull, HullColor)
	}
	for _, v := range o.Valleys {
		gocv.Circle(canvas, v.Far, farRadius, FarColor, -1)
		gocv.Circle(canvas, v.Start, startRadius, StartColor, -1)
	}
}

func drawPolygon(canvas *gocv.Mat, pts []image.Point, c color.RGBA) {
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.DrawContours(canvas, pv, -1, c, lineWidth)
}
