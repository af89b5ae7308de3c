package handlers

import (
	"net/http"

	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/database"
	"github.com/kozaktomas/facecheck/internal/face"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Detectors         DetectorsInfo `json:"detectors"`
	Models            []string      `json:"models"`
	PhotoIntervalMs   int64         `json:"photo_interval_ms"`
	VideoIntervalMs   int64         `json:"video_interval_ms"`
	DistanceThreshold float64       `json:"distance_threshold"`
	MaxFrameSize      int           `json:"max_frame_size"`
	HistoryEnabled    bool          `json:"history_enabled"`
}

// DetectorsInfo holds both detector option sets
type DetectorsInfo struct {
	Video face.DetectorOptions `json:"video"`
	Image face.DetectorOptions `json:"image"`
}

// Get returns the effective configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Detectors: DetectorsInfo{
			Video: h.config.Detectors.Video,
			Image: h.config.Detectors.Image,
		},
		Models:            h.config.Inference.Models,
		PhotoIntervalMs:   h.config.Loop.PhotoInterval.Milliseconds(),
		VideoIntervalMs:   h.config.Loop.VideoInterval.Milliseconds(),
		DistanceThreshold: h.config.Matcher.DistanceThreshold,
		MaxFrameSize:      h.config.Capture.MaxFrameSize,
		HistoryEnabled:    database.IsInitialized(),
	}

	respondJSON(w, http.StatusOK, response)
}
