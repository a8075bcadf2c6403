package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/hand"
)

// Controller is the live pipeline state exposed over the API.
type Controller interface {
	ColorModel() hand.ColorModel
	SetColorModel(hand.ColorModel) error
	Enabled() bool
	SetEnabled(bool) error
}

// SettingsHandler reads and updates live pipeline settings.
type SettingsHandler struct {
	ctl Controller
	log logrus.FieldLogger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(ctl Controller, log logrus.FieldLogger) *SettingsHandler {
	return &SettingsHandler{ctl: ctl, log: log.WithField("handler", "settings")}
}

type settingsResponse struct {
	ColorModel string   `json:"color_model"`
	Enabled    bool     `json:"enabled"`
	Models     []string `json:"models"`
}

type settingsRequest struct {
	ColorModel *string `json:"color_model"`
	Enabled    *bool   `json:"enabled"`
}

// ServeHTTP handles GET and PUT /api/settings.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.current())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) current() settingsResponse {
	resp := settingsResponse{
		ColorModel: h.ctl.ColorModel().String(),
		Enabled:    h.ctl.Enabled(),
	}
	for _, m := range hand.ColorModels() {
		resp.Models = append(resp.Models, m.String())
	}
	return resp
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var model hand.ColorModel
	if req.ColorModel != nil {
		m, err := hand.ParseColorModel(*req.ColorModel)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		model = m
	}

	if req.ColorModel != nil {
		if err := h.ctl.SetColorModel(model); err != nil {
			h.log.WithError(err).Error("failed to set color model")
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	if req.Enabled != nil {
		if err := h.ctl.SetEnabled(*req.Enabled); err != nil {
			h.log.WithError(err).Error("failed to set enabled")
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	h.log.WithFields(logrus.Fields{
		"color_model": h.ctl.ColorModel().String(),
		"enabled":     h.ctl.Enabled(),
	}).Info("settings updated")

	writeJSON(w, http.StatusOK, h.current())
}
