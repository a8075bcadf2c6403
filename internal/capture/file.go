package capture

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true, ".tif": true, ".tiff": true,
}

// FileSource plays an image or video file through the Camera interface. A
// still image is returned on every read; a video ends with ErrNoFrame unless
// Loop is set.
type FileSource struct {
	path string
	opts Options
	loop bool

	mu      sync.Mutex
	still   *gocv.Mat
	video   *gocv.VideoCapture
	running bool
}

// NewFileSource creates a source for path. Frames are normalized like camera
// frames, though mirroring is usually left off for recorded input.
func NewFileSource(path string, opts Options, loop bool) *FileSource {
	return &FileSource{path: path, opts: opts.withDefaults(), loop: loop}
}

// IsImage reports whether path has a still image extension.
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

func (s *FileSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if IsImage(s.path) {
		img := gocv.IMRead(s.path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			return fmt.Errorf("open %s: unreadable image", s.path)
		}
		s.still = &img
	} else {
		video, err := gocv.VideoCaptureFile(s.path)
		if err != nil {
			return fmt.Errorf("open %s: %w", s.path, err)
		}
		s.video = video
	}
	s.running = true
	return nil
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.still != nil {
		err = s.still.Close()
		s.still = nil
	}
	if s.video != nil {
		err = s.video.Close()
		s.video = nil
	}
	s.running = false
	return err
}

// ReadFrame returns the next frame. The caller must close it.
func (s *FileSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrCameraNotOpen
	}

	if s.still != nil {
		out := s.opts.normalize(s.still.Clone())
		return &out, nil
	}

	mat := gocv.NewMat()
	if ok := s.video.Read(&mat); !ok || mat.Empty() {
		if !s.loop {
			mat.Close()
			return nil, ErrNoFrame
		}
		s.video.Set(gocv.VideoCapturePosFrames, 0)
		if ok := s.video.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			return nil, ErrNoFrame
		}
	}
	out := s.opts.normalize(mat)
	return &out, nil
}

func (s *FileSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.FPS = fps
}

func (s *FileSource) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.FPS
}

func (s *FileSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
