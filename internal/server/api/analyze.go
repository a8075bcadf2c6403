package api

import (
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/store"
)

// MaxUploadBytes caps the request body of POST /api/analyze.
const MaxUploadBytes = 16 << 20

// AnalyzeHandler runs the finger counting pipeline on uploaded images.
type AnalyzeHandler struct {
	analyzer *hand.Analyzer
	store    *store.Store
	model    func() hand.ColorModel
	log      logrus.FieldLogger
}

// NewAnalyzeHandler creates an AnalyzeHandler. s may be nil, in which case
// nothing is recorded. model supplies the color model used when the request
// names none.
func NewAnalyzeHandler(a *hand.Analyzer, s *store.Store, model func() hand.ColorModel, log logrus.FieldLogger) *AnalyzeHandler {
	if model == nil {
		model = func() hand.ColorModel { return hand.ModelYCrCb }
	}
	return &AnalyzeHandler{analyzer: a, store: s, model: model, log: log.WithField("handler", "analyze")}
}

type pointResponse struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type valleyResponse struct {
	Start pointResponse `json:"start"`
	End   pointResponse `json:"end"`
	Far   pointResponse `json:"far"`
	Depth float64       `json:"depth"`
	Angle float64       `json:"angle"`
}

type analyzeResponse struct {
	ID         string           `json:"id,omitempty"`
	Fingers    int              `json:"fingers"`
	Found      bool             `json:"found"`
	Area       float64          `json:"area"`
	Model      string           `json:"model"`
	Width      int              `json:"width"`
	Height     int              `json:"height"`
	Defects    int              `json:"defects"`
	Valleys    []valleyResponse `json:"valleys"`
	Hull       []pointResponse  `json:"hull"`
	ImageHash  string           `json:"image_hash,omitempty"`
	DurationUS int64            `json:"duration_us"`
}

func toPoint(p image.Point) pointResponse {
	return pointResponse{X: p.X, Y: p.Y}
}

// ServeHTTP handles POST /api/analyze?model=ycrcb|hsv&format=json|jpeg&source=name&record=false.
// The image is the raw request body or the "image" field of a multipart form.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	model := h.model()
	if name := q.Get("model"); name != "" {
		m, err := hand.ParseColorModel(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		model = m
	}

	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "jpeg" {
		writeError(w, http.StatusBadRequest, "format must be json or jpeg")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	data, filename, err := readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		img.Close()
		writeError(w, http.StatusBadRequest, "unsupported or corrupt image")
		return
	}
	defer img.Close()

	start := time.Now()
	var analysis *hand.Analysis
	var canvas gocv.Mat
	if format == "jpeg" {
		canvas = img.Clone()
		defer canvas.Close()
		analysis, err = h.analyzer.AnalyzeOnto(img, model, &canvas)
	} else {
		analysis, err = h.analyzer.Analyze(img, model)
	}
	if err != nil {
		h.log.WithError(err).Warn("analysis failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	defer analysis.Close()
	elapsed := time.Since(start)

	resp := analyzeResponse{
		Fingers:    analysis.Fingers(),
		Found:      analysis.Found,
		Area:       analysis.Area,
		Model:      model.String(),
		Width:      img.Cols(),
		Height:     img.Rows(),
		Defects:    len(analysis.Result.Defects),
		Valleys:    []valleyResponse{},
		Hull:       []pointResponse{},
		DurationUS: elapsed.Microseconds(),
	}
	for _, v := range analysis.Result.Valleys {
		resp.Valleys = append(resp.Valleys, valleyResponse{
			Start: toPoint(v.Start),
			End:   toPoint(v.End),
			Far:   toPoint(v.Far),
			Depth: v.Defect.Depth,
			Angle: v.Angle,
		})
	}
	for _, p := range analysis.Result.Hull.Points {
		resp.Hull = append(resp.Hull, toPoint(p))
	}

	hash := h.hash(img)
	if hash != nil {
		resp.ImageHash = formatHash(*hash)
	}

	if h.store != nil && q.Get("record") != "false" {
		source := q.Get("source")
		if source == "" {
			source = filename
		}
		rec := &store.Analysis{
			ID:         uuid.New().String(),
			Source:     source,
			ColorModel: model.String(),
			Fingers:    resp.Fingers,
			Found:      resp.Found,
			Area:       resp.Area,
			Valleys:    len(resp.Valleys),
			Defects:    resp.Defects,
			ImageHash:  hash,
			Width:      resp.Width,
			Height:     resp.Height,
			Duration:   elapsed,
		}
		if err := h.store.Analyses().Create(rec); err != nil {
			h.log.WithError(err).Error("failed to record analysis")
			writeError(w, http.StatusInternalServerError, "Failed to record analysis")
			return
		}
		resp.ID = rec.ID
	}

	h.log.WithFields(logrus.Fields{
		"id":      resp.ID,
		"model":   resp.Model,
		"fingers": resp.Fingers,
		"found":   resp.Found,
		"elapsed": elapsed,
	}).Info("image analyzed")

	if format == "jpeg" {
		buf, err := gocv.IMEncode(".jpg", canvas)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode overlay")
			return
		}
		defer buf.Close()
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Finger-Count", strconv.Itoa(resp.Fingers))
		if resp.ID != "" {
			w.Header().Set("X-Analysis-Id", resp.ID)
		}
		w.WriteHeader(http.StatusOK)
		w.Write(buf.GetBytes())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// hash returns the perceptual hash of img, nil if it cannot be computed.
func (h *AnalyzeHandler) hash(img gocv.Mat) *uint64 {
	goImg, err := img.ToImage()
	if err != nil {
		h.log.WithError(err).Debug("image conversion for hashing failed")
		return nil
	}
	ph, err := goimagehash.PerceptionHash(goImg)
	if err != nil {
		h.log.WithError(err).Debug("perceptual hash failed")
		return nil
	}
	v := ph.GetHash()
	return &v
}

// readImage returns the uploaded bytes and, for multipart uploads, the file name.
func readImage(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, "", fmt.Errorf("multipart field \"image\": %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		if len(data) == 0 {
			return nil, "", errors.New("empty image")
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}
	return data, "", nil
}

func formatHash(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

func parseHash(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid image hash %q", hand.ErrInvalidArgument, s)
	}
	return v, nil
}
