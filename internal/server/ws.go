package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feed"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// DetectionMessage is one websocket message.
type DetectionMessage struct {
	Seq       uint64              `json:"seq"`
	Fingers   int                 `json:"fingers"`
	Enabled   bool                `json:"enabled"`
	FPS       float64             `json:"fps"`
	Detection *detector.Detection `json:"detection"`
	Timestamp int64               `json:"timestamp"`
}

// DetectionsHandler pushes every published detection to websocket clients.
type DetectionsHandler struct {
	feed feed.Source
	log  logrus.FieldLogger
}

// NewDetectionsHandler creates a new DetectionsHandler reading from src.
func NewDetectionsHandler(src feed.Source, log logrus.FieldLogger) *DetectionsHandler {
	return &DetectionsHandler{feed: src, log: log.WithField("handler", "detections")}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DetectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Incoming messages are ignored; a read error means the client left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.log.WithField("remote", r.RemoteAddr).Debug("detections client connected")
	defer h.log.WithField("remote", r.RemoteAddr).Debug("detections client disconnected")

	var last uint64
	for {
		snap, err := h.feed.Next(ctx, last)
		if err != nil {
			return
		}
		last = snap.Seq

		msg := DetectionMessage{
			Seq:       snap.Seq,
			Fingers:   snap.Fingers(),
			Enabled:   snap.Enabled,
			FPS:       snap.FPS,
			Detection: snap.Detection,
			Timestamp: snap.Timestamp.UnixMilli(),
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
