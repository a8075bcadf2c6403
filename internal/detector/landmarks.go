// Package detector turns camera frames into finger count detections.
package detector

import (
	"image"
	"time"

	"github.com/ayusman/mudra/internal/hand"
	"gocv.io/x/gocv"
)

// Point2D is a point in normalized frame coordinates, both axes in [0,1].
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is the result of analyzing one frame.
type Detection struct {
	Found   bool    `json:"found"`
	Fingers int     `json:"fingers"`
	Area    float64 `json:"area"`
	Model   string  `json:"model"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Defects int     `json:"defects"`

	// Tips are the hull vertices bounding a finger valley.
	Tips    []Point2D `json:"tips"`
	Valleys []Point2D `json:"valleys"`
	Hull    []Point2D `json:"hull"`

	Elapsed time.Duration `json:"elapsed_ns"`

	// Overlay draws the geometry in pixel coordinates of the source frame.
	Overlay hand.Overlay `json:"-"`
	// Mask is the skin mask, nil after Release.
	Mask *gocv.Mat `json:"-"`
}

// Release frees the mask. Safe on nil and safe to call twice.
func (d *Detection) Release() {
	if d == nil || d.Mask == nil {
		return
	}
	d.Mask.Close()
	d.Mask = nil
}

// newDetection copies an analysis into a Detection, taking ownership of its mask.
func newDetection(a *hand.Analysis, width, height int) *Detection {
	det := &Detection{
		Found:   a.Found,
		Fingers: a.Fingers(),
		Area:    a.Area,
		Model:   a.Model.String(),
		Width:   width,
		Height:  height,
		Mask:    a.Mask,
	}
	a.Mask = nil

	if !a.Found {
		return det
	}

	res := a.Result
	det.Defects = len(res.Defects)
	det.Hull = normalize(res.Hull.Points, width, height)
	det.Overlay = res.Overlay

	seen := make(map[image.Point]bool)
	for _, v := range res.Valleys {
		det.Valleys = append(det.Valleys, normalizePoint(v.Far, width, height))
		for _, p := range []image.Point{v.Start, v.End} {
			if !seen[p] {
				seen[p] = true
				det.Tips = append(det.Tips, normalizePoint(p, width, height))
			}
		}
	}
	return det
}

func normalize(pts []image.Point, width, height int) []Point2D {
	if len(pts) == 0 {
		return nil
	}
	out := make([]Point2D, len(pts))
	for i, p := range pts {
		out[i] = normalizePoint(p, width, height)
	}
	return out
}

// normalizePoint maps pixel coordinates into [0,1].
func normalizePoint(p image.Point, width, height int) Point2D {
	if width <= 0 || height <= 0 {
		return Point2D{}
	}
	return Point2D{
		X: clamp01(float64(p.X) / float64(width)),
		Y: clamp01(float64(p.Y) / float64(height)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
