package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/logger"
)

// Restarter ends the running pipeline attempt so a fresh one starts.
type Restarter interface {
	Restart() bool
	Attempt() int
}

// RestartHandler handles manual pipeline restarts.
type RestartHandler struct {
	pipeline Restarter
}

// NewRestartHandler creates a new restart handler.
func NewRestartHandler(pipeline Restarter) *RestartHandler {
	return &RestartHandler{pipeline: pipeline}
}

// Restart requests a pipeline restart. Requests made while an attempt is
// already ending are answered with 409.
func (h *RestartHandler) Restart(w http.ResponseWriter, r *http.Request) {
	attempt := h.pipeline.Attempt()
	if !h.pipeline.Restart() {
		respondError(w, http.StatusConflict, "pipeline is not running or already restarting")
		return
	}
	logger.FromContext(r.Context()).Info("manual pipeline restart", zap.Int("attempt", attempt))
	respondJSON(w, http.StatusAccepted, map[string]int{"attempt": attempt})
}
