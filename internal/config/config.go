// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/ayusman/mudra/internal/hand"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string `validate:"required"`
	DataDir  string `validate:"required"`
	WebDir   string

	CameraID    int    `validate:"gte=0"`
	ColorModel  string `validate:"oneof=ycrcb hsv"`
	FrameWidth  int    `validate:"gte=16,lte=4096"`
	FrameHeight int    `validate:"gte=16,lte=4096"`
	FPS         int    `validate:"gte=1,lte=60"`
	Mirror      bool

	BlurSize        int     `validate:"odd"`
	KernelSize      int     `validate:"odd"`
	MorphIterations int     `validate:"gte=1,lte=10"`
	MinHandArea     float64 `validate:"gte=0"`
	DepthThreshold  float64 `validate:"gte=0"`
	AngleThreshold  float64 `validate:"gt=0,lte=180"`

	LogLevel string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFile  string

	Tray bool
}

// Default returns the settings used when no variable is set.
func Default() *Config {
	return &Config{
		HTTPAddr:        "127.0.0.1:8080",
		DataDir:         defaultDataDir(),
		WebDir:          "web",
		CameraID:        0,
		ColorModel:      hand.ModelYCrCb.String(),
		FrameWidth:      hand.DefaultCanvasWidth,
		FrameHeight:     hand.DefaultCanvasHeight,
		FPS:             15,
		Mirror:          true,
		BlurSize:        hand.DefaultBlurSize,
		KernelSize:      hand.DefaultKernelSize,
		MorphIterations: hand.DefaultMorphIterations,
		MinHandArea:     hand.MinHandArea,
		DepthThreshold:  hand.DefaultDepthThreshold,
		AngleThreshold:  hand.DefaultAngleThreshold,
		LogLevel:        "info",
		Tray:            false,
	}
}

// Load reads envFile (if it exists) into the process environment, then builds
// and validates a Config. Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	def := Default()
	cfg := &Config{
		HTTPAddr:        getEnv("MUDRA_HTTP_ADDR", def.HTTPAddr),
		DataDir:         getEnv("MUDRA_DATA_DIR", def.DataDir),
		WebDir:          getEnv("MUDRA_WEB_DIR", def.WebDir),
		CameraID:        getEnvInt("MUDRA_CAMERA_ID", def.CameraID),
		ColorModel:      strings.ToLower(getEnv("MUDRA_COLOR_MODEL", def.ColorModel)),
		FrameWidth:      getEnvInt("MUDRA_FRAME_WIDTH", def.FrameWidth),
		FrameHeight:     getEnvInt("MUDRA_FRAME_HEIGHT", def.FrameHeight),
		FPS:             getEnvInt("MUDRA_FPS", def.FPS),
		Mirror:          getEnvBool("MUDRA_MIRROR", def.Mirror),
		BlurSize:        getEnvInt("MUDRA_BLUR_SIZE", def.BlurSize),
		KernelSize:      getEnvInt("MUDRA_KERNEL_SIZE", def.KernelSize),
		MorphIterations: getEnvInt("MUDRA_MORPH_ITERATIONS", def.MorphIterations),
		MinHandArea:     getEnvFloat("MUDRA_MIN_HAND_AREA", def.MinHandArea),
		DepthThreshold:  getEnvFloat("MUDRA_DEPTH_THRESHOLD", def.DepthThreshold),
		AngleThreshold:  getEnvFloat("MUDRA_ANGLE_THRESHOLD", def.AngleThreshold),
		LogLevel:        strings.ToLower(getEnv("MUDRA_LOG_LEVEL", def.LogLevel)),
		LogFile:         getEnv("MUDRA_LOG_FILE", def.LogFile),
		Tray:            getEnvBool("MUDRA_TRAY", def.Tray),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Kernel sizes must be odd and positive.
	_ = v.RegisterValidation("odd", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.Int {
			return false
		}
		n := fl.Field().Int()
		return n > 0 && n%2 == 1
	})
	return v
}

// Validate checks every field. Failures wrap hand.ErrInvalidArgument.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: config: %s", hand.ErrInvalidArgument, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: config: %v", hand.ErrInvalidArgument, err)
	}
	return nil
}

// Model returns the configured color model.
func (c *Config) Model() (hand.ColorModel, error) {
	return hand.ParseColorModel(c.ColorModel)
}

// SegmentConfig returns the segmentation settings.
func (c *Config) SegmentConfig() hand.SegmentConfig {
	return hand.SegmentConfig{
		BlurSize:   c.BlurSize,
		KernelSize: c.KernelSize,
		Iterations: c.MorphIterations,
	}
}

// FingerConfig returns the finger classification settings.
func (c *Config) FingerConfig() hand.FingerConfig {
	return hand.FingerConfig{
		DepthThreshold: c.DepthThreshold,
		AngleThreshold: c.AngleThreshold,
		MaxFingers:     hand.MaxFingers,
	}
}

// AnalyzerOptions bundles the pipeline settings.
func (c *Config) AnalyzerOptions() hand.Options {
	return hand.Options{
		Segment: c.SegmentConfig(),
		Fingers: c.FingerConfig(),
		MinArea: c.MinHandArea,
	}
}

// DBPath is the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "mudra.db")
}

// ScreenshotDir is where saved frames go.
func (c *Config) ScreenshotDir() string {
	return filepath.Join(c.DataDir, "screenshots")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mudra"
	}
	return filepath.Join(home, ".mudra")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
