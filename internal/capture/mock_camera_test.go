package capture

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/fixtures"
	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error = %v", i, err)
		}
		f.Close()
	}

	// Third read should fail (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("expected ErrNoFrame after all frames consumed, got %v", err)
	}
	if cam.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_NotOpen(t *testing.T) {
	cam := NewMockCamera(nil, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	cam.Open()
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("ReadFrame() with no frames error = %v, want ErrNoFrame", err)
	}
}

func TestFileSource_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hand.png")
	if err := fixtures.WriteHand(path, 5); err != nil {
		t.Fatalf("WriteHand() error: %v", err)
	}

	src := NewFileSource(path, Options{Width: 320, Height: 240}, false)
	if src.IsOpen() {
		t.Error("source should not be open before Open()")
	}
	if _, err := src.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() before Open error = %v", err)
	}

	if err := src.Open(); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	// A still image repeats forever.
	for i := 0; i < 3; i++ {
		f, err := src.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() %d error: %v", i, err)
		}
		if f.Cols() != 320 || f.Rows() != 240 {
			t.Errorf("frame size = %dx%d, want 320x240", f.Cols(), f.Rows())
		}
		f.Close()
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.jpg"), DefaultOptions(), false)
	if err := src.Open(); err == nil {
		src.Close()
		t.Error("expected error opening a missing image")
	}
}

func TestIsImage(t *testing.T) {
	tests := map[string]bool{
		"a.jpg": true, "b.JPEG": true, "c.png": true, "d.mp4": false, "e.avi": false, "f": false,
	}
	for path, want := range tests {
		if got := IsImage(path); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCameraImplementations(t *testing.T) {
	var _ Camera = (*MockCamera)(nil)
	var _ Camera = (*FileSource)(nil)
	var _ Camera = NewCamera(0, DefaultOptions())
}
