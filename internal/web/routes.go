package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/facecheck/internal/web/handlers"
	"github.com/kozaktomas/facecheck/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config)
	photoHandler := handlers.NewPhotoHandler(s.deps.Photos, s.deps.Board)
	streamHandler := handlers.NewStreamHandler(s.deps.Frames, s.config.Capture.MaxFrameSize, s.origins.CheckOrigin)
	eventsHandler := handlers.NewEventsHandler(s.deps.Board)
	restartHandler := handlers.NewRestartHandler(s.deps.Pipeline)
	historyHandler := handlers.NewHistoryHandler(s.config.Matcher.DistanceThreshold)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams
		r.Get("/stream", streamHandler.Stream)
		r.Get("/events", eventsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(apiTimeout))

			r.Get("/config", configHandler.Get)

			r.Get("/photo", photoHandler.Get)
			r.Post("/photo", photoHandler.Upload)
			r.Delete("/photo", photoHandler.Delete)

			r.Get("/status", eventsHandler.Status)
			r.Get("/overlay/{target}", eventsHandler.Overlay)

			r.Post("/restart", restartHandler.Restart)

			r.Get("/history", historyHandler.List)
			r.Get("/history/similar", historyHandler.Similar)
		})
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	// Check if we have embedded frontend assets
	if static.HasDist() {
		// Try to serve the requested file
		fs := static.GetFileSystem()
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		// Try to open the file
		f, err := fs.Open(path)
		if err == nil {
			defer f.Close()

			// Get file info for content type detection
			stat, err := f.Stat()
			if err == nil && !stat.IsDir() {
				// Set content type based on extension
				contentType := "application/octet-stream"
				switch {
				case strings.HasSuffix(path, ".html"):
					contentType = "text/html; charset=utf-8"
				case strings.HasSuffix(path, ".css"):
					contentType = "text/css; charset=utf-8"
				case strings.HasSuffix(path, ".js"):
					contentType = "application/javascript; charset=utf-8"
				case strings.HasSuffix(path, ".json"):
					contentType = "application/json"
				case strings.HasSuffix(path, ".svg"):
					contentType = "image/svg+xml"
				case strings.HasSuffix(path, ".png"):
					contentType = "image/png"
				case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
					contentType = "image/jpeg"
				case strings.HasSuffix(path, ".ico"):
					contentType = "image/x-icon"
				case strings.HasSuffix(path, ".woff2"):
					contentType = "font/woff2"
				case strings.HasSuffix(path, ".woff"):
					contentType = "font/woff"
				}

				w.Header().Set("Content-Type", contentType)

				// Add cache headers for static assets
				if strings.HasPrefix(path, "/assets/") {
					w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				}

				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		// For SPA routing, serve index.html for non-asset paths
		if !strings.HasPrefix(path, "/assets/") {
			indexFile, err := fs.Open("/index.html")
			if err == nil {
				defer indexFile.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, indexFile)
				return
			}
		}
	}

	// Fallback: return placeholder page if no frontend is built
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>facecheck</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>facecheck</h1>
        <p>Frontend is not built yet. The embedded client is missing from this build.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
