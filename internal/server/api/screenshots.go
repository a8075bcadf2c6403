package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/store"
)

// ScreenshotSaver writes the current annotated frame to disk.
type ScreenshotSaver interface {
	SaveScreenshot() (*store.Screenshot, error)
}

// ScreenshotsHandler lists and takes screenshots.
type ScreenshotsHandler struct {
	store *store.Store
	saver ScreenshotSaver
	log   logrus.FieldLogger
}

// NewScreenshotsHandler creates a new ScreenshotsHandler. saver may be nil,
// in which case POST answers 503.
func NewScreenshotsHandler(s *store.Store, saver ScreenshotSaver, log logrus.FieldLogger) *ScreenshotsHandler {
	return &ScreenshotsHandler{store: s, saver: saver, log: log.WithField("handler", "screenshots")}
}

// ServeHTTP handles GET and POST /api/screenshots.
func (h *ScreenshotsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPost:
		h.take(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScreenshotsHandler) list(w http.ResponseWriter) {
	items, err := h.store.Screenshots().List()
	if err != nil {
		h.log.WithError(err).Error("failed to list screenshots")
		writeError(w, http.StatusInternalServerError, "Failed to list screenshots")
		return
	}
	if items == nil {
		items = []*store.Screenshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"screenshots": items,
	})
}

func (h *ScreenshotsHandler) take(w http.ResponseWriter) {
	if h.saver == nil {
		writeError(w, http.StatusServiceUnavailable, "Live capture is not running")
		return
	}
	sc, err := h.saver.SaveScreenshot()
	if err != nil {
		h.log.WithError(err).Warn("failed to save screenshot")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}
