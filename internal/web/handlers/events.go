package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/logger"
	"github.com/kozaktomas/facecheck/internal/overlay"
	"github.com/kozaktomas/facecheck/internal/status"
)

// sseKeepAlive is the interval of comment lines that keep idle SSE connections open.
const sseKeepAlive = 15 * time.Second

// EventsHandler serves the status board: snapshots, the SSE stream and overlay images.
type EventsHandler struct {
	board *status.Board
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(board *status.Board) *EventsHandler {
	return &EventsHandler{board: board}
}

// StatusResponse is the full board snapshot.
type StatusResponse struct {
	status.State
	Overlays map[status.Target]overlay.Snapshot `json:"overlays"`
}

func (h *EventsHandler) snapshot() StatusResponse {
	return StatusResponse{
		State: h.board.State(),
		Overlays: map[status.Target]overlay.Snapshot{
			status.TargetVideo: h.board.Canvas(status.TargetVideo).Snapshot(),
			status.TargetPhoto: h.board.Canvas(status.TargetPhoto).Snapshot(),
		},
	}
}

// Status returns the current board state and both overlays.
func (h *EventsHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

// Events streams board changes as server-sent events until the client disconnects.
func (h *EventsHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := h.board.AddListener()
	defer h.board.RemoveListener(eventCh)

	log := logger.FromContext(r.Context())
	log.Debug("event listener attached", zap.Int("listeners", h.board.ListenerCount()))

	sendSSEEvent(w, flusher, status.EventStatus, h.snapshot())

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

// Overlay renders an overlay canvas as a transparent PNG.
func (h *EventsHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(chi.URLParam(r, "target"), ".png")
	target, ok := status.ParseTarget(name)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown overlay")
		return
	}

	data, err := h.board.Canvas(target).Snapshot().EncodePNG()
	if err != nil {
		logger.FromContext(r.Context()).Error("overlay render failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to render overlay")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
