package database

import (
	"time"

	"github.com/google/uuid"
)

// MatchEvent is one decided outcome of the reference photo matching loop.
type MatchEvent struct {
	ID           uuid.UUID
	At           time.Time
	Found        bool
	Label        string  // "person N" or "unknown", empty when the webcam showed no face
	Distance     float64 // distance to the nearest photo face, 0 when nothing was compared
	PhotoFaces   int     // faces detected in the reference photo
	PhotoVersion int
	Descriptor   []float32 // webcam face descriptor, nil when no face was seen
}

// NewMatchEvent creates an event with a fresh ID stamped now.
func NewMatchEvent(found bool, label string, distance float64, photoFaces, photoVersion int, descriptor []float32) MatchEvent {
	return MatchEvent{
		ID:           uuid.New(),
		At:           time.Now().UTC(),
		Found:        found,
		Label:        label,
		Distance:     distance,
		PhotoFaces:   photoFaces,
		PhotoVersion: photoVersion,
		Descriptor:   descriptor,
	}
}

// Outcome summarizes the event for change detection.
func (e MatchEvent) Outcome() string {
	if !e.Found {
		return "not_found"
	}
	return "found:" + e.Label
}
