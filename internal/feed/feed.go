// Package feed hands the most recent annotated frame from the capture loop to
// any number of HTTP viewers.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
)

// Snapshot is one published frame.
type Snapshot struct {
	Seq       uint64              `json:"seq"`
	JPEG      []byte              `json:"-"`
	Detection *detector.Detection `json:"detection"`
	Enabled   bool                `json:"enabled"`
	FPS       float64             `json:"fps"`
	Timestamp time.Time           `json:"timestamp"`
}

// Fingers returns the count carried by the snapshot, 0 without a detection.
func (s Snapshot) Fingers() int {
	if s.Detection == nil {
		return 0
	}
	return s.Detection.Fingers
}

// Source is what viewers consume.
type Source interface {
	// Latest returns the newest snapshot, false before the first publish.
	Latest() (Snapshot, bool)
	// Next blocks until a snapshot newer than after is published or ctx ends.
	Next(ctx context.Context, after uint64) (Snapshot, error)
}

// Hub keeps the latest snapshot and wakes waiting viewers on publish.
// Snapshots are shared between viewers and must not be modified.
type Hub struct {
	mu      sync.Mutex
	latest  Snapshot
	has     bool
	changed chan struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{changed: make(chan struct{})}
}

// Publish stores s, assigns it the next sequence number and wakes viewers.
// Any mask on the detection must already be released.
func (h *Hub) Publish(s Snapshot) Snapshot {
	h.mu.Lock()
	s.Seq = h.latest.Seq + 1
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	h.latest = s
	h.has = true
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()
	return s
}

func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

func (h *Hub) Next(ctx context.Context, after uint64) (Snapshot, error) {
	for {
		h.mu.Lock()
		if h.has && h.latest.Seq > after {
			s := h.latest
			h.mu.Unlock()
			return s, nil
		}
		wait := h.changed
		h.mu.Unlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-wait:
		}
	}
}
