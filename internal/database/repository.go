package database

import (
	"context"
)

// HistoryWriter records match events
type HistoryWriter interface {
	// Record stores one match event
	Record(ctx context.Context, event MatchEvent) error
}

// HistoryReader provides read-only access to match history
type HistoryReader interface {
	// Recent returns the newest events first, at most limit of them
	Recent(ctx context.Context, limit int) ([]MatchEvent, error)
	// Count returns the total number of stored events
	Count(ctx context.Context) (int, error)
	// FindSimilar returns events whose webcam descriptor lies within maxDistance
	// of the given descriptor, nearest first, with their distances
	FindSimilar(ctx context.Context, descriptor []float32, limit int, maxDistance float64) ([]MatchEvent, []float64, error)
}

// HistoryRepository is the full match history store
type HistoryRepository interface {
	HistoryReader
	HistoryWriter
}
