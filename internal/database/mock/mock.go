// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/face"
)

// MockHistoryRepository is an in-memory implementation of database.HistoryRepository
type MockHistoryRepository struct {
	mu     sync.RWMutex
	events []database.MatchEvent

	// Error injection
	RecordError      error
	RecentError      error
	CountError       error
	FindSimilarError error
}

// NewMockHistoryRepository creates a new mock history repository
func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

// Record stores an event
func (m *MockHistoryRepository) Record(ctx context.Context, e database.MatchEvent) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of every recorded event in insertion order
func (m *MockHistoryRepository) Events() []database.MatchEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.MatchEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Recent returns the newest events first
func (m *MockHistoryRepository) Recent(ctx context.Context, limit int) ([]database.MatchEvent, error) {
	if m.RecentError != nil {
		return nil, m.RecentError
	}
	events := m.Events()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Count returns the number of recorded events
func (m *MockHistoryRepository) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events), nil
}

// FindSimilar does a linear euclidean scan over recorded descriptors
func (m *MockHistoryRepository) FindSimilar(ctx context.Context, descriptor []float32, limit int, maxDistance float64) ([]database.MatchEvent, []float64, error) {
	if m.FindSimilarError != nil {
		return nil, nil, m.FindSimilarError
	}

	type hit struct {
		event database.MatchEvent
		dist  float64
	}
	var hits []hit
	for _, e := range m.Events() {
		if e.Descriptor == nil {
			continue
		}
		if d := face.EuclideanDistance(e.Descriptor, descriptor); d < maxDistance {
			hits = append(hits, hit{event: e, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	events := make([]database.MatchEvent, len(hits))
	distances := make([]float64, len(hits))
	for i, h := range hits {
		events[i] = h.event
		distances[i] = h.dist
	}
	return events, distances, nil
}
