package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu        sync.Mutex
	detection *Detection
	err       error
	calls     int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetection sets the detection that will be returned by Detect.
func (m *MockDetector) SetDetection(d Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detection = &d
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns a copy of the pre-configured detection or error. Without a
// preset it reports no hand, sized like the frame.
func (m *MockDetector) Detect(frame *gocv.Mat) (*Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return nil, m.err
	}
	if m.detection == nil {
		det := &Detection{Model: "ycrcb"}
		if frame != nil {
			det.Width, det.Height = frame.Cols(), frame.Rows()
		}
		return det, nil
	}
	d := *m.detection
	d.Mask = nil
	return &d, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenHandDetection returns a preset Detection of five raised fingers.
func OpenHandDetection() Detection {
	return Detection{
		Found:   true,
		Fingers: 5,
		Area:    48000,
		Model:   "ycrcb",
		Width:   640,
		Height:  480,
		Defects: 6,
		Tips: []Point2D{
			{X: 0.26, Y: 0.50}, {X: 0.35, Y: 0.37}, {X: 0.50, Y: 0.31},
			{X: 0.65, Y: 0.37}, {X: 0.74, Y: 0.50},
		},
		Valleys: []Point2D{
			{X: 0.41, Y: 0.56}, {X: 0.47, Y: 0.54}, {X: 0.53, Y: 0.54}, {X: 0.59, Y: 0.56},
		},
	}
}

// FistDetection returns a preset Detection of a closed hand.
func FistDetection() Detection {
	return Detection{
		Found:   true,
		Fingers: 0,
		Area:    15400,
		Model:   "ycrcb",
		Width:   640,
		Height:  480,
	}
}
