package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com ,https://b.example.com,, ")
	origins := ParseAllowedOrigins()
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d: %v", len(origins), origins)
	}
	if !origins.Allowed("https://a.example.com") || !origins.Allowed("https://b.example.com") {
		t.Error("configured origins should be allowed")
	}
}

func TestOrigins_Allowed(t *testing.T) {
	origins := Origins{"https://app.example.com": {}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://127.0.0.1:8080", true},
		{"http://localhost.evil.com", false},
		{"https://app.example.com", true},
		{"https://other.example.com", false},
	}
	for _, tt := range tests {
		if got := origins.Allowed(tt.origin); got != tt.want {
			t.Errorf("Allowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOrigins_CheckOrigin(t *testing.T) {
	origins := Origins{}
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "facecheck.example.com", true},
		{"same host", "https://facecheck.example.com", "facecheck.example.com", true},
		{"foreign", "https://evil.example.com", "facecheck.example.com", false},
		{"localhost", "http://localhost:3000", "facecheck.example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := origins.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS(Origins{})(next)

	t.Run("preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/photo", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("disallowed origin passes through without CORS headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		if w.Code != http.StatusTeapot {
			t.Errorf("status = %d, want next handler", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}
