package hand

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// ColorModel selects the chrominance space used for skin thresholding.
// The zero value is not a valid model.
type ColorModel int

const (
	// ModelYCrCb separates luma from the two chroma channels.
	ModelYCrCb ColorModel = iota + 1
	// ModelHSV separates hue, saturation and value.
	ModelHSV
)

// Bounds holds the inclusive per-channel skin range of a color model.
type Bounds struct {
	Lower [3]uint8
	Upper [3]uint8
}

// contains reports whether a pixel, already in the model's color space, is skin.
func (b Bounds) contains(px [3]uint8) bool {
	for i := 0; i < 3; i++ {
		if px[i] < b.Lower[i] || px[i] > b.Upper[i] {
			return false
		}
	}
	return true
}

var (
	// YCrCbBounds: Y in [0,255], Cr in [133,173], Cb in [77,127].
	YCrCbBounds = Bounds{Lower: [3]uint8{0, 133, 77}, Upper: [3]uint8{255, 173, 127}}
	// HSVBounds: H in [0,20], S in [20,255], V in [70,255] (OpenCV 8-bit hue scale).
	HSVBounds = Bounds{Lower: [3]uint8{0, 20, 70}, Upper: [3]uint8{20, 255, 255}}
)

var modelTable = map[ColorModel]struct {
	name   string
	bounds Bounds
	code   gocv.ColorConversionCode
}{
	ModelYCrCb: {name: "ycrcb", bounds: YCrCbBounds, code: gocv.ColorBGRToYCrCb},
	ModelHSV:   {name: "hsv", bounds: HSVBounds, code: gocv.ColorBGRToHSV},
}

// ColorModels lists the supported models in a stable order.
func ColorModels() []ColorModel {
	return []ColorModel{ModelYCrCb, ModelHSV}
}

// ParseColorModel maps a configuration name ("ycrcb" or "hsv") to a model.
func ParseColorModel(name string) (ColorModel, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for m, entry := range modelTable {
		if entry.name == key {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown color model %q", ErrInvalidArgument, name)
}

// Valid reports whether m is one of the supported models.
func (m ColorModel) Valid() bool {
	_, ok := modelTable[m]
	return ok
}

// String returns the configuration name of the model.
func (m ColorModel) String() string {
	if entry, ok := modelTable[m]; ok {
		return entry.name
	}
	return fmt.Sprintf("ColorModel(%d)", int(m))
}

// Bounds returns the skin range of the model.
func (m ColorModel) Bounds() (Bounds, error) {
	entry, ok := modelTable[m]
	if !ok {
		return Bounds{}, fmt.Errorf("%w: unsupported color model %d", ErrInvalidArgument, int(m))
	}
	return entry.bounds, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m ColorModel) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: unsupported color model %d", ErrInvalidArgument, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ColorModel) UnmarshalText(text []byte) error {
	parsed, err := ParseColorModel(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m ColorModel) conversion() gocv.ColorConversionCode {
	return modelTable[m].code
}
