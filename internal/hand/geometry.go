package hand

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Boundary is the closed outer perimeter of a foreground region, in contour
// traversal order. It is a plain Go slice and holds no native memory.
type Boundary []image.Point

// Valid reports whether the boundary has enough points to form a polygon.
func (b Boundary) Valid() bool {
	return len(b) >= 3
}

// Area returns the polygon area enclosed by the boundary (shoelace formula).
func (b Boundary) Area() float64 {
	if len(b) < 3 {
		return 0
	}
	var sum int64
	for i := range b {
		j := (i + 1) % len(b)
		sum += int64(b[i].X)*int64(b[j].Y) - int64(b[j].X)*int64(b[i].Y)
	}
	return math.Abs(float64(sum)) / 2
}

func (b Boundary) pointVector() gocv.PointVector {
	return gocv.NewPointVectorFromPoints(b)
}

// Hull is the convex hull of a Boundary in both forms: Indices into the
// boundary, used for defect computation, and the matching Points, used for
// drawing. Points[i] == boundary[Indices[i]].
type Hull struct {
	Indices []int
	Points  []image.Point
}

// Len returns the number of hull vertices.
func (h Hull) Len() int {
	if len(h.Indices) > 0 {
		return len(h.Indices)
	}
	return len(h.Points)
}

// ComputeHull returns the convex hull of b.
func ComputeHull(b Boundary) (Hull, error) {
	if !b.Valid() {
		return Hull{}, fmt.Errorf("%w: hull needs at least 3 points, got %d", ErrInsufficientGeometry, len(b))
	}

	pv := b.pointVector()
	defer pv.Close()

	hullMat := gocv.NewMat()
	defer hullMat.Close()
	if err := gocv.ConvexHull(pv, &hullMat, false, false); err != nil {
		return Hull{}, fmt.Errorf("convex hull: %w", err)
	}

	indices := make([]int, 0, hullMat.Rows())
	for i := 0; i < hullMat.Rows(); i++ {
		indices = append(indices, int(hullMat.GetIntAt(i, 0)))
	}
	return HullFromIndices(b, indices)
}

// HullFromIndices builds a Hull from boundary indices.
func HullFromIndices(b Boundary, indices []int) (Hull, error) {
	points := make([]image.Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(b) {
			return Hull{}, fmt.Errorf("%w: hull index %d out of range [0,%d)", ErrInvalidArgument, idx, len(b))
		}
		points[i] = b[idx]
	}
	return Hull{Indices: append([]int(nil), indices...), Points: points}, nil
}

// HullFromPoints builds a Hull from hull vertices; a vertex that is not on
// the boundary is rejected. Contours repeat points where a one pixel spur
// doubles back, so a vertex may have several boundary indices. The indices
// chosen are the ones that walk the boundary in one direction with the fewest
// wraps, which is what ConvexityDefects requires.
func HullFromPoints(b Boundary, points []image.Point) (Hull, error) {
	if len(points) == 0 {
		return Hull{}, nil
	}
	occurrences := make(map[image.Point][]int, len(b))
	for i, p := range b {
		occurrences[p] = append(occurrences[p], i)
	}
	for _, p := range points {
		if _, ok := occurrences[p]; !ok {
			return Hull{}, fmt.Errorf("%w: hull vertex %v is not on the boundary", ErrInvalidArgument, p)
		}
	}

	var best []int
	bestWraps := -1
	for _, step := range []int{1, -1} {
		for _, start := range occurrences[points[0]] {
			indices := walkHull(occurrences, points, len(b), start, step)
			if w := wraps(indices, step); bestWraps < 0 || w < bestWraps {
				best, bestWraps = indices, w
			}
		}
	}
	return Hull{Indices: best, Points: append([]image.Point(nil), points...)}, nil
}

// walkHull resolves each vertex to the occurrence nearest to the previous
// index in direction step (+1 or -1) around a boundary of n points.
func walkHull(occurrences map[image.Point][]int, points []image.Point, n, start, step int) []int {
	indices := make([]int, len(points))
	indices[0] = start
	for i := 1; i < len(points); i++ {
		prev := indices[i-1]
		bestIdx, bestDist := -1, 0
		for _, c := range occurrences[points[i]] {
			d := ((c-prev)*step%n + n) % n
			if d == 0 {
				d = n
			}
			if bestIdx < 0 || d < bestDist {
				bestIdx, bestDist = c, d
			}
		}
		indices[i] = bestIdx
	}
	return indices
}

// wraps counts the steps, including last to first, that move against step.
func wraps(indices []int, step int) int {
	if len(indices) < 2 {
		return 0
	}
	w := 0
	for i, idx := range indices {
		next := indices[(i+1)%len(indices)]
		if (next-idx)*step < 0 {
			w++
		}
	}
	return w
}

// normalize fills whichever form of h is missing.
func (h Hull) normalize(b Boundary) (Hull, error) {
	switch {
	case len(h.Indices) > 0 && len(h.Points) == 0:
		return HullFromIndices(b, h.Indices)
	case len(h.Indices) == 0 && len(h.Points) > 0:
		return HullFromPoints(b, h.Points)
	case len(h.Indices) != len(h.Points):
		return Hull{}, fmt.Errorf("%w: hull has %d indices but %d points", ErrInvalidArgument, len(h.Indices), len(h.Points))
	}
	for i, idx := range h.Indices {
		if idx < 0 || idx >= len(b) || b[idx] != h.Points[i] {
			return Hull{}, fmt.Errorf("%w: hull index %d does not match point %v", ErrInvalidArgument, idx, h.Points[i])
		}
	}
	return h, nil
}

// Defect is one concavity between two consecutive hull vertices.
// Start, End and Far index the boundary; Depth is the distance in pixels from
// the Far point to the hull edge Start-End.
type Defect struct {
	Start int
	End   int
	Far   int
	Depth float64
}

// ComputeDefects returns the convexity defects of b against hull.
// The hull must have at least 4 vertices; smaller hulls yield no defects.
func ComputeDefects(b Boundary, hull Hull) ([]Defect, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: defects need at least 3 points, got %d", ErrInsufficientGeometry, len(b))
	}
	hull, err := hull.normalize(b)
	if err != nil {
		return nil, err
	}
	if hull.Len() < 4 {
		return nil, nil
	}

	pv := b.pointVector()
	defer pv.Close()

	hullMat := gocv.NewMatWithSize(len(hull.Indices), 1, gocv.MatTypeCV32S)
	defer hullMat.Close()
	for i, idx := range hull.Indices {
		hullMat.SetIntAt(i, 0, int32(idx))
	}

	result := gocv.NewMat()
	defer result.Close()
	// OpenCV rejects hulls whose indices are not monotonic, which happens on
	// self-intersecting contours. Such a boundary has no usable concavities.
	if err := gocv.ConvexityDefects(pv, hullMat, &result); err != nil {
		return nil, nil
	}
	if result.Empty() {
		return nil, nil
	}

	// Each row is (start, end, far, fixed-point depth).
	defects := make([]Defect, 0, result.Rows())
	for i := 0; i < result.Rows(); i++ {
		defects = append(defects, Defect{
			Start: int(result.GetIntAt(i, 0)),
			End:   int(result.GetIntAt(i, 1)),
			Far:   int(result.GetIntAt(i, 2)),
			Depth: float64(result.GetIntAt(i, 3)) / depthScale,
		})
	}
	return defects, nil
}

func distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
