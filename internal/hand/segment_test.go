package hand

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ayusman/mudra/internal/fixtures"
	"gocv.io/x/gocv"
)

func TestNewSegmenter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SegmentConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultSegmentConfig()},
		{name: "larger odd kernels", cfg: SegmentConfig{BlurSize: 7, KernelSize: 9, Iterations: 1}},
		{name: "even blur", cfg: SegmentConfig{BlurSize: 4, KernelSize: 5, Iterations: 2}, wantErr: true},
		{name: "zero kernel", cfg: SegmentConfig{BlurSize: 5, KernelSize: 0, Iterations: 2}, wantErr: true},
		{name: "negative blur", cfg: SegmentConfig{BlurSize: -3, KernelSize: 5, Iterations: 2}, wantErr: true},
		{name: "zero iterations", cfg: SegmentConfig{BlurSize: 5, KernelSize: 5, Iterations: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSegmenter(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("NewSegmenter() error = %v, want ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSegmenter() unexpected error: %v", err)
			}
			if s.Config() != tt.cfg {
				t.Errorf("Config() = %+v, want %+v", s.Config(), tt.cfg)
			}
		})
	}
}

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	s, err := NewSegmenter(DefaultSegmentConfig())
	if err != nil {
		t.Fatalf("NewSegmenter() error: %v", err)
	}
	return s
}

func TestSegmenter_InvalidInput(t *testing.T) {
	s := newTestSegmenter(t)

	t.Run("unsupported model", func(t *testing.T) {
		img := fixtures.HandFrame(5)
		defer img.Close()
		if _, err := s.Segment(img, ColorModel(0)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Segment() error = %v, want ErrInvalidArgument", err)
		}
		if _, err := s.Segment(img, ColorModel(42)); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Segment() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("empty image", func(t *testing.T) {
		img := gocv.NewMat()
		defer img.Close()
		if _, err := s.Segment(img, ModelYCrCb); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Segment() error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("single channel image", func(t *testing.T) {
		img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC1)
		defer img.Close()
		if _, err := s.Segment(img, ModelHSV); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Segment() error = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestSegmenter_Mask(t *testing.T) {
	s := newTestSegmenter(t)

	for _, model := range ColorModels() {
		t.Run(model.String(), func(t *testing.T) {
			t.Run("blank frame has no skin", func(t *testing.T) {
				img := fixtures.Blank()
				defer img.Close()

				mask, err := s.Segment(img, model)
				if err != nil {
					t.Fatalf("Segment() error: %v", err)
				}
				defer mask.Close()

				if n := gocv.CountNonZero(*mask); n != 0 {
					t.Errorf("expected empty mask, got %d foreground pixels", n)
				}
			})

			t.Run("hand frame is binary and sized like input", func(t *testing.T) {
				img := fixtures.HandFrame(5)
				defer img.Close()

				mask, err := s.Segment(img, model)
				if err != nil {
					t.Fatalf("Segment() error: %v", err)
				}
				defer mask.Close()

				if mask.Rows() != img.Rows() || mask.Cols() != img.Cols() {
					t.Errorf("mask size = %dx%d, want %dx%d", mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
				}
				if mask.Channels() != 1 {
					t.Errorf("mask channels = %d, want 1", mask.Channels())
				}
				if gocv.CountNonZero(*mask) == 0 {
					t.Fatal("expected skin pixels in mask")
				}
				for i, v := range mask.ToBytes() {
					if v != 0 && v != 255 {
						t.Fatalf("pixel %d = %d, want 0 or 255", i, v)
					}
				}
			})
		})
	}
}

func TestSegmenter_RemovesSpeckles(t *testing.T) {
	s := newTestSegmenter(t)

	img := fixtures.Blob(3)
	defer img.Close()

	mask, err := s.Segment(img, ModelYCrCb)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}
	defer mask.Close()

	if n := gocv.CountNonZero(*mask); n != 0 {
		t.Errorf("expected speckle to be removed, got %d foreground pixels", n)
	}
}

func TestSegmenter_Deterministic(t *testing.T) {
	s := newTestSegmenter(t)

	img := fixtures.HandFrame(3)
	defer img.Close()

	first, err := s.Segment(img, ModelHSV)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}
	defer first.Close()

	second, err := s.Segment(img, ModelHSV)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}
	defer second.Close()

	if !bytes.Equal(first.ToBytes(), second.ToBytes()) {
		t.Error("two runs on the same frame produced different masks")
	}
}
