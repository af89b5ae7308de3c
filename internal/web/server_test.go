package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/facecheck/internal/capture"
	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/photo"
	"github.com/kozaktomas/facecheck/internal/status"
)

type idlePipeline struct{}

func (idlePipeline) Restart() bool { return false }
func (idlePipeline) Attempt() int  { return 0 }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := photo.NewStore("")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	cfg := &config.Config{
		Matcher: config.MatcherConfig{DistanceThreshold: 0.6},
		Capture: config.CaptureConfig{MaxFrameSize: 1 << 20},
	}
	return NewServer(cfg, Deps{
		Frames:   capture.NewBuffer(),
		Photos:   store,
		Board:    status.NewBoard(),
		Pipeline: idlePipeline{},
	}, 0, "127.0.0.1")
}

func TestServerRoutes(t *testing.T) {
	router := newTestServer(t).Router()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusOK, wantBody: `"ok"`},
		{name: "config", method: http.MethodGet, path: "/api/v1/config", wantStatus: http.StatusOK, wantBody: "distance_threshold"},
		{name: "photo", method: http.MethodGet, path: "/api/v1/photo", wantStatus: http.StatusOK, wantBody: "data:image/jpeg;base64,"},
		{name: "status", method: http.MethodGet, path: "/api/v1/status", wantStatus: http.StatusOK, wantBody: `"phase":"idle"`},
		{name: "overlay", method: http.MethodGet, path: "/api/v1/overlay/photo.png", wantStatus: http.StatusOK},
		{name: "restart while idle", method: http.MethodPost, path: "/api/v1/restart", wantStatus: http.StatusConflict},
		{name: "history disabled", method: http.MethodGet, path: "/api/v1/history", wantStatus: http.StatusServiceUnavailable},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "facecheck_"},
		{name: "spa index", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "<title>facecheck</title>"},
		{name: "spa fallback", method: http.MethodGet, path: "/some/client/route", wantStatus: http.StatusOK, wantBody: "inputVideo"},
		{name: "script", method: http.MethodGet, path: "/assets/app.js", wantStatus: http.StatusOK, wantBody: "EventSource"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, httptest.NewRequest(tt.method, tt.path, nil))

			if recorder.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", recorder.Code, tt.wantStatus, recorder.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(recorder.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

func TestServerSecurityHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()
	newTestServer(t).Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
}
