package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/logger"
)

// HistoryHandler serves recorded match events.
type HistoryHandler struct {
	maxDistance float64
}

// NewHistoryHandler creates a new history handler. maxDistance bounds the
// descriptor distance of similar events.
func NewHistoryHandler(maxDistance float64) *HistoryHandler {
	return &HistoryHandler{maxDistance: maxDistance}
}

// HistoryEvent is one match event in API form.
type HistoryEvent struct {
	ID           string    `json:"id"`
	At           time.Time `json:"at"`
	Found        bool      `json:"found"`
	Label        string    `json:"label,omitempty"`
	Distance     float64   `json:"distance"`
	PhotoFaces   int       `json:"photo_faces"`
	PhotoVersion int       `json:"photo_version"`
	Similarity   *float64  `json:"similarity,omitempty"`
}

func historyEvent(e database.MatchEvent) HistoryEvent {
	return HistoryEvent{
		ID:           e.ID.String(),
		At:           e.At,
		Found:        e.Found,
		Label:        e.Label,
		Distance:     e.Distance,
		PhotoFaces:   e.PhotoFaces,
		PhotoVersion: e.PhotoVersion,
	}
}

// HistoryResponse is a page of match events, newest first.
type HistoryResponse struct {
	Events []HistoryEvent `json:"events"`
	Total  int            `json:"total"`
}

// List returns the most recent match events. The page size is taken from the
// limit query parameter and capped.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reader, ok := historyReader(w, r)
	if !ok {
		return
	}

	log := logger.FromContext(r.Context())
	events, err := reader.Recent(r.Context(), limit)
	if err != nil {
		log.Error("loading match history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	total, err := reader.Count(r.Context())
	if err != nil {
		log.Error("counting match history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	resp := HistoryResponse{Events: make([]HistoryEvent, 0, len(events)), Total: total}
	for _, e := range events {
		resp.Events = append(resp.Events, historyEvent(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Similar returns earlier events whose webcam face is close to the newest
// recorded face, nearest first.
func (h *HistoryHandler) Similar(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	reader, ok := historyReader(w, r)
	if !ok {
		return
	}

	log := logger.FromContext(r.Context())
	recent, err := reader.Recent(r.Context(), constants.MaxHistoryLimit)
	if err != nil {
		log.Error("loading match history", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	var latest *database.MatchEvent
	for i := range recent {
		if recent[i].Descriptor != nil {
			latest = &recent[i]
			break
		}
	}
	if latest == nil {
		respondError(w, http.StatusNotFound, "no recorded face")
		return
	}

	events, distances, err := reader.FindSimilar(r.Context(), latest.Descriptor, limit+1, h.maxDistance)
	if err != nil {
		log.Error("searching similar faces", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to search history")
		return
	}

	resp := HistoryResponse{Events: make([]HistoryEvent, 0, len(events))}
	for i, e := range events {
		if e.ID == latest.ID {
			continue
		}
		he := historyEvent(e)
		he.Similarity = &distances[i]
		resp.Events = append(resp.Events, he)
	}
	if len(resp.Events) > limit {
		resp.Events = resp.Events[:limit]
	}
	resp.Total = len(resp.Events)
	respondJSON(w, http.StatusOK, resp)
}

// parseLimit reads the limit query parameter, capped at MaxHistoryLimit.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return constants.DefaultHistoryLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, constants.MaxHistoryLimit), true
}

func historyReader(w http.ResponseWriter, r *http.Request) (database.HistoryReader, bool) {
	reader, err := database.GetHistoryReader(r.Context())
	if errors.Is(err, database.ErrNotInitialized) {
		respondError(w, http.StatusServiceUnavailable, "match history is disabled")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history unavailable")
		return nil, false
	}
	return reader, true
}
