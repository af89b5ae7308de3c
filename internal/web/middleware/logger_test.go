package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kozaktomas/facecheck/internal/logger"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := chiMiddleware.RequestID(Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.FilterMessage("handled").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["request_id"]; !ok {
		t.Error("expected request_id field")
	}
}
