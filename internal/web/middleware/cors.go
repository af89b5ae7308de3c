package middleware

import (
	"net/http"
	"os"
	"strings"
)

// Origins is a whitelist of browser origins allowed to call the API and
// open the frame stream.
type Origins map[string]struct{}

// ParseAllowedOrigins reads WEB_ALLOWED_ORIGINS (comma-separated).
// Localhost origins on any port are always allowed for development.
func ParseAllowedOrigins() Origins {
	origins := make(Origins)
	if env := os.Getenv("WEB_ALLOWED_ORIGINS"); env != "" {
		for o := range strings.SplitSeq(env, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				origins[o] = struct{}{}
			}
		}
	}
	return origins
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost[:port].
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// Allowed checks whether a request origin is permitted.
func (o Origins) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if isLocalhostOrigin(origin) {
		return true
	}
	_, ok := o[origin]
	return ok
}

// CheckOrigin reports whether a websocket upgrade request may proceed. Requests
// without an Origin header and same-host requests are accepted.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host {
		return true
	}
	return o.Allowed(origin)
}

// CORS returns middleware that handles CORS headers with an origin whitelist.
func CORS(allowed Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that sets Content-Security-Policy and other security headers.
// Data URLs are allowed for the reference photo preview.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; img-src 'self' data: blob:; media-src 'self' blob: mediastream:; "+
					"style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
