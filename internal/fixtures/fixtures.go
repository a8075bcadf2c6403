// Package fixtures draws synthetic camera frames for tests: a skin colored
// hand with a chosen number of raised fingers on a black background.
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// Frame size of every generated image.
const (
	Width  = 640
	Height = 480
)

// Skin is RGB(224,172,105). It falls inside both the YCrCb and the HSV skin
// ranges; black falls inside neither.
var Skin = color.RGBA{R: 224, G: 172, B: 105, A: 255}

// Hand geometry.
var (
	PalmCenter   = image.Pt(320, 330)
	PalmRadius   = 70
	FingerWidth  = 22
	FingerLength = 110
	// FingerSpread is the angle between neighboring fingers, in degrees.
	FingerSpread = 30.0
)

// Blank returns a black BGR frame. The caller must close it.
func Blank() gocv.Mat {
	m := gocv.NewMatWithSize(Height, Width, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}

// HandFrame returns a frame with a palm and n fingers fanned upward around
// the vertical. n is clamped to [0,5]; 0 draws a fist. The caller must close it.
func HandFrame(n int) gocv.Mat {
	n = max(0, min(n, 5))
	m := Blank()
	gocv.Circle(&m, PalmCenter, PalmRadius, Skin, -1)
	for _, tip := range FingerTips(n) {
		gocv.Line(&m, PalmCenter, tip, Skin, FingerWidth)
	}
	return m
}

// Fist is HandFrame(0).
func Fist() gocv.Mat {
	return HandFrame(0)
}

// Blob returns a frame holding a single filled skin square of the given side,
// centered in the frame.
func Blob(side int) gocv.Mat {
	m := Blank()
	x := (Width - side) / 2
	y := (Height - side) / 2
	gocv.Rectangle(&m, image.Rect(x, y, x+side, y+side), Skin, -1)
	return m
}

// FingerTips returns the centerline end of each finger.
func FingerTips(n int) []image.Point {
	reach := float64(PalmRadius + FingerLength)
	tips := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		deg := (float64(i) - float64(n-1)/2) * FingerSpread
		rad := deg * math.Pi / 180
		tips = append(tips, image.Pt(
			PalmCenter.X+int(math.Round(reach*math.Sin(rad))),
			PalmCenter.Y-int(math.Round(reach*math.Cos(rad))),
		))
	}
	return tips
}

// Star is a hand-shaped polygon with five tips and four deep, narrow valleys.
func Star() []image.Point {
	return []image.Point{
		{100, 400}, {100, 130}, {140, 300}, {180, 105}, {220, 300},
		{260, 100}, {300, 300}, {340, 105}, {380, 300}, {420, 130}, {420, 400},
	}
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".png", img)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()
	return buf.GetBytes(), nil
}

// HandPNG returns HandFrame(n) encoded losslessly.
func HandPNG(n int) ([]byte, error) {
	m := HandFrame(n)
	defer m.Close()
	return EncodePNG(m)
}

// HandJPEG returns HandFrame(n) encoded as JPEG.
func HandJPEG(n int) ([]byte, error) {
	m := HandFrame(n)
	defer m.Close()
	return EncodeJPEG(m)
}

// WriteHand writes HandFrame(n) to path in the format implied by its extension.
func WriteHand(path string, n int) error {
	m := HandFrame(n)
	defer m.Close()
	if ok := gocv.IMWrite(path, m); !ok {
		return fmt.Errorf("write %s: failed", path)
	}
	return nil
}

// LoadFrame decodes an image file into a BGR Mat.
func LoadFrame(path string) (*gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", path, err)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode frame %s: empty image", path)
	}
	return &mat, nil
}
