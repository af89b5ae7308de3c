package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/facecheck/internal/constants"
	"github.com/kozaktomas/facecheck/internal/logger"
	"github.com/kozaktomas/facecheck/internal/overlay"
	"github.com/kozaktomas/facecheck/internal/photo"
	"github.com/kozaktomas/facecheck/internal/status"
)

// PhotoHandler handles the reference photo endpoints.
type PhotoHandler struct {
	store *photo.Store
	board *status.Board
}

// NewPhotoHandler creates a new photo handler.
func NewPhotoHandler(store *photo.Store, board *status.Board) *PhotoHandler {
	return &PhotoHandler{
		store: store,
		board: board,
	}
}

// PhotoResponse describes the current reference photo.
type PhotoResponse struct {
	Accepted bool   `json:"accepted"`
	Version  int    `json:"version"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Default  bool   `json:"default"`
	DataURL  string `json:"data_url"`
	Reason   string `json:"reason,omitempty"`
}

func photoResponse(p *photo.Photo, accepted bool) PhotoResponse {
	return PhotoResponse{
		Accepted: accepted,
		Version:  p.Version,
		Width:    p.Width,
		Height:   p.Height,
		Default:  p.Default,
		DataURL:  p.DataURL(),
	}
}

// clearOverlays empties both canvases at their current size and drops the found state.
func (h *PhotoHandler) clearOverlays() {
	for _, t := range []status.Target{status.TargetVideo, status.TargetPhoto} {
		snap := h.board.Canvas(t).Snapshot()
		h.board.Clear(t, overlay.Dimensions{Width: snap.Width, Height: snap.Height})
	}
	h.board.SetNotFound()
}

// Upload replaces the reference photo with the multipart "file" part.
// Files not declared as image/jpeg reset the photo to the default image.
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	h.clearOverlays()

	contentType := header.Header.Get("Content-Type")
	p, err := h.store.Set(contentType, data)
	switch {
	case errors.Is(err, photo.ErrNotJPEG):
		log.Info("reference photo rejected",
			zap.String("filename", sanitizeForLog(header.Filename)),
			zap.String("content_type", sanitizeForLog(contentType)))
		h.board.PhotoChanged(p.Version)
		resp := photoResponse(p, false)
		resp.Reason = "only image/jpeg is accepted"
		respondJSON(w, http.StatusOK, resp)
		return
	case err != nil:
		log.Warn("reference photo could not be decoded",
			zap.String("filename", sanitizeForLog(header.Filename)), zap.Error(err))
		p = h.store.Reset()
		h.board.PhotoChanged(p.Version)
		respondError(w, http.StatusBadRequest, "invalid JPEG image")
		return
	}

	log.Info("reference photo replaced",
		zap.Int("version", p.Version), zap.Int("width", p.Width), zap.Int("height", p.Height))
	h.board.PhotoChanged(p.Version)
	respondJSON(w, http.StatusOK, photoResponse(p, true))
}

// Get returns the current reference photo.
func (h *PhotoHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, photoResponse(h.store.Current(), true))
}

// Delete restores the default image.
func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.clearOverlays()
	p := h.store.Reset()
	h.board.PhotoChanged(p.Version)
	respondJSON(w, http.StatusOK, photoResponse(p, true))
}
