package api

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/store"
)

// DefaultSimilarDistance is the Hamming distance used by ?similar= when no
// distance is given.
const DefaultSimilarDistance = 10

// AnalysesHandler exposes the recorded analysis history.
type AnalysesHandler struct {
	store *store.Store
	log   logrus.FieldLogger
}

// NewAnalysesHandler creates a new AnalysesHandler.
func NewAnalysesHandler(s *store.Store, log logrus.FieldLogger) *AnalysesHandler {
	return &AnalysesHandler{store: s, log: log.WithField("handler", "analyses")}
}

type analysisRecord struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	ColorModel string  `json:"color_model"`
	Fingers    int     `json:"fingers"`
	Found      bool    `json:"found"`
	Area       float64 `json:"area"`
	Valleys    int     `json:"valleys"`
	Defects    int     `json:"defects"`
	ImageHash  string  `json:"image_hash,omitempty"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DurationUS int64   `json:"duration_us"`
	CreatedAt  string  `json:"created_at"`
	Distance   *int    `json:"distance,omitempty"`
}

func toRecord(a *store.Analysis, withDistance bool) analysisRecord {
	rec := analysisRecord{
		ID:         a.ID,
		Source:     a.Source,
		ColorModel: a.ColorModel,
		Fingers:    a.Fingers,
		Found:      a.Found,
		Area:       a.Area,
		Valleys:    a.Valleys,
		Defects:    a.Defects,
		Width:      a.Width,
		Height:     a.Height,
		DurationUS: a.Duration.Microseconds(),
		CreatedAt:  a.CreatedAt.Format(timeFormat),
	}
	if a.ImageHash != nil {
		rec.ImageHash = formatHash(*a.ImageHash)
	}
	if withDistance {
		d := a.Distance
		rec.Distance = &d
	}
	return rec
}

// ServeHTTP handles:
//
//	GET    /api/analyses?limit=N
//	GET    /api/analyses?similar=<hex hash>&distance=N&limit=N
//	GET    /api/analyses/{id}
//	DELETE /api/analyses/{id}
func (h *AnalysesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/analyses")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AnalysesHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := intParam(w, q.Get("limit"), store.DefaultListLimit, "limit")
	if !ok {
		return
	}

	var (
		items   []*store.Analysis
		err     error
		similar = q.Get("similar") != ""
	)
	if similar {
		hash, perr := parseHash(q.Get("similar"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		dist, ok := intParam(w, q.Get("distance"), DefaultSimilarDistance, "distance")
		if !ok {
			return
		}
		items, err = h.store.Analyses().ListSimilar(hash, dist, limit)
	} else {
		items, err = h.store.Analyses().List(limit)
	}
	if err != nil {
		h.log.WithError(err).Error("failed to list analyses")
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	out := make([]analysisRecord, 0, len(items))
	for _, a := range items {
		out = append(out, toRecord(a, similar))
	}

	total, err := h.store.Analyses().Count()
	if err != nil {
		h.log.WithError(err).Error("failed to count analyses")
		writeError(w, http.StatusInternalServerError, "Failed to count analyses")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": out,
		"total":    total,
	})
}

func (h *AnalysesHandler) get(w http.ResponseWriter, id string) {
	a, err := h.store.Analyses().GetByID(id)
	if err != nil {
		if status := statusFor(err); status != http.StatusInternalServerError {
			writeError(w, status, "Analysis not found")
			return
		}
		h.log.WithError(err).Error("failed to get analysis")
		writeError(w, http.StatusInternalServerError, "Failed to get analysis")
		return
	}
	writeJSON(w, http.StatusOK, toRecord(a, false))
}

func (h *AnalysesHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Analyses().Delete(id); err != nil {
		if status := statusFor(err); status != http.StatusInternalServerError {
			writeError(w, status, "Analysis not found")
			return
		}
		h.log.WithError(err).Error("failed to delete analysis")
		writeError(w, http.StatusInternalServerError, "Failed to delete analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// intParam parses a non-negative integer query value. It writes a 400 and
// returns false on malformed input.
func intParam(w http.ResponseWriter, raw string, def int, name string) (int, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
