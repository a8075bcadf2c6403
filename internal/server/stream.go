package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/mudra/internal/feed"
)

// StreamHandler serves the annotated frames of a feed as MJPEG.
type StreamHandler struct {
	feed feed.Source
}

// NewStreamHandler creates a new StreamHandler reading from src.
func NewStreamHandler(src feed.Source) *StreamHandler {
	return &StreamHandler{feed: src}
}

// ServeHTTP streams one MJPEG part per published snapshot until the client
// goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last uint64
	for {
		snap, err := h.feed.Next(r.Context(), last)
		if err != nil {
			return
		}
		last = snap.Seq
		if len(snap.JPEG) == 0 {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "X-Finger-Count: %d\r\n", snap.Fingers())
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(snap.JPEG))
		if _, err := w.Write(snap.JPEG); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
