package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/database/mock"
)

func descriptorOf(v float32) []float32 {
	d := make([]float32, 128)
	for i := range d {
		d[i] = v
	}
	return d
}

func withHistory(t *testing.T, events ...database.MatchEvent) *mock.MockHistoryRepository {
	t.Helper()
	repo := mock.NewMockHistoryRepository()
	for _, e := range events {
		if err := repo.Record(t.Context(), e); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	database.RegisterPostgresBackend(func() database.HistoryRepository { return repo })
	t.Cleanup(database.ResetBackend)
	return repo
}

func TestHistoryHandler_Disabled(t *testing.T) {
	database.ResetBackend()
	recorder := httptest.NewRecorder()
	NewHistoryHandler(0.6).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	assertJSONError(t, recorder, "match history is disabled")
}

func TestHistoryHandler_List(t *testing.T) {
	base := time.Now().UTC()
	var events []database.MatchEvent
	for i := range 3 {
		e := database.NewMatchEvent(i%2 == 0, "person 1", 0.2, 1, 1, nil)
		e.At = base.Add(time.Duration(i) * time.Second)
		events = append(events, e)
	}
	withHistory(t, events...)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "default limit", query: "", wantStatus: http.StatusOK, wantCount: 3},
		{name: "limited", query: "?limit=2", wantStatus: http.StatusOK, wantCount: 2},
		{name: "invalid", query: "?limit=abc", wantStatus: http.StatusBadRequest},
		{name: "zero", query: "?limit=0", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			NewHistoryHandler(0.6).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history"+tt.query, nil))

			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp HistoryResponse
			decodeJSON(t, recorder, &resp)
			if len(resp.Events) != tt.wantCount || resp.Total != 3 {
				t.Errorf("got %d events, total %d", len(resp.Events), resp.Total)
			}
			if resp.Events[0].ID != events[2].ID.String() {
				t.Error("expected newest event first")
			}
		})
	}
}

func TestHistoryHandler_ListError(t *testing.T) {
	repo := withHistory(t)
	repo.RecentError = errors.New("connection reset")

	recorder := httptest.NewRecorder()
	NewHistoryHandler(0.6).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
}

func TestHistoryHandler_Similar(t *testing.T) {
	base := time.Now().UTC()
	near := database.NewMatchEvent(true, "person 1", 0.2, 1, 1, descriptorOf(0.11))
	near.At = base
	far := database.NewMatchEvent(false, "unknown", 0.9, 1, 1, descriptorOf(0.9))
	far.At = base.Add(time.Second)
	latest := database.NewMatchEvent(true, "person 1", 0.1, 1, 2, descriptorOf(0.1))
	latest.At = base.Add(2 * time.Second)
	noFace := database.NewMatchEvent(false, "", 0, 1, 2, nil)
	noFace.At = base.Add(3 * time.Second)
	withHistory(t, near, far, latest, noFace)

	recorder := httptest.NewRecorder()
	NewHistoryHandler(0.6).Similar(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history/similar", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp HistoryResponse
	decodeJSON(t, recorder, &resp)
	if len(resp.Events) != 1 || resp.Events[0].ID != near.ID.String() {
		t.Fatalf("expected only the near event, got %+v", resp.Events)
	}
	if resp.Events[0].Similarity == nil {
		t.Error("expected a similarity distance")
	}
}

func TestHistoryHandler_SimilarWithoutFaces(t *testing.T) {
	withHistory(t, database.NewMatchEvent(false, "", 0, 0, 1, nil))

	recorder := httptest.NewRecorder()
	NewHistoryHandler(0.6).Similar(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/history/similar", nil))
	assertStatusCode(t, recorder, http.StatusNotFound)
}
