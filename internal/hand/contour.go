package hand

import (
	"fmt"

	"gocv.io/x/gocv"
)

// SelectHand extracts the outer contours of mask and returns the one enclosing
// the largest area. It reports false when the mask has no contours or when the
// largest one is smaller than minArea; both are normal outcomes, not errors.
//
// Holes inside a blob are ignored. Equal areas keep the first contour found.
func SelectHand(mask gocv.Mat, minArea float64) (Boundary, bool, error) {
	if mask.Empty() {
		return nil, false, fmt.Errorf("%w: empty mask", ErrInvalidArgument)
	}
	if mask.Channels() != 1 {
		return nil, false, fmt.Errorf("%w: mask must be single-channel, got %d channels", ErrInvalidArgument, mask.Channels())
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return nil, false, nil
	}

	maxIdx := -1
	maxArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if maxIdx < 0 || area > maxArea {
			maxIdx = i
			maxArea = area
		}
	}

	if maxArea < minArea {
		return nil, false, nil
	}

	// ToPoints copies out of native memory, so the boundary outlives contours.
	boundary := Boundary(contours.At(maxIdx).ToPoints())
	if !boundary.Valid() {
		return nil, false, nil
	}
	return boundary, true, nil
}
