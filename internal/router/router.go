package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
)

const apiPrefix = "/api/v1/users"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

func (lrw *loggingResponseWriter) statusCode() int {
	if lrw.status == 0 {
		return http.StatusOK
	}
	return lrw.status
}

// LoggingMiddleware logs each request at debug level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", lrw.statusCode(),
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// MetricsMiddleware records request latency labelled with the matched route
// pattern, so path parameters do not explode the label set.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(r.Method, route, lrw.statusCode(), time.Since(start))
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// token-bearing responses must not be cached by intermediaries
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessToken returns the token from the access cookie or the Authorization header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(session.AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// AuthMiddleware verifies the access token and stores its claims in the request context.
func AuthMiddleware(tm *token.Manager, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := accessToken(r)
			if raw == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized request"})
				return
			}
			claims, err := tm.VerifyAccess(raw)
			if err != nil {
				logger.Debugw("access token rejected", "path", r.URL.Path, "err", err)
				msg := "invalid access token"
				if errors.Is(err, token.ErrExpired) {
					msg = "access token expired"
				}
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
				return
			}
			next.ServeHTTP(w, r.WithContext(token.NewContext(r.Context(), claims)))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Deps are the collaborators the routes are mounted on.
type Deps struct {
	Logger   *zap.SugaredLogger
	Tokens   *token.Manager
	Metrics  *metrics.Metrics
	Users    *user.Handler
	Sessions *session.Handler
	// Health reports readiness; nil means always healthy.
	Health func(ctx context.Context) error
}

// RegisterRoutes mounts HTTP handlers on the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	auth := AuthMiddleware(d.Tokens, d.Logger)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			if err := d.Health(r.Context()); err != nil {
				d.Logger.Warnw("health check failed", "err", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", d.Metrics.Handler())

	mux.HandleFunc("POST "+apiPrefix+"/register", d.Users.Register)
	mux.HandleFunc("POST "+apiPrefix+"/login", d.Sessions.Login)
	mux.HandleFunc("POST "+apiPrefix+"/refresh-token", d.Sessions.Refresh)
	mux.Handle("POST "+apiPrefix+"/logout", protected(d.Sessions.Logout))
	mux.Handle("POST "+apiPrefix+"/change-password", protected(d.Sessions.ChangePassword))

	mux.Handle("GET "+apiPrefix+"/current-user", protected(d.Users.CurrentUser))
	mux.Handle("PATCH "+apiPrefix+"/update-account", protected(d.Users.UpdateAccount))
	mux.Handle("PATCH "+apiPrefix+"/avatar", protected(d.Users.UpdateAvatar))
	mux.Handle("PATCH "+apiPrefix+"/cover-image", protected(d.Users.UpdateCoverImage))
	mux.Handle("GET "+apiPrefix+"/c/{username}", protected(d.Users.ChannelProfile))
	mux.Handle("POST "+apiPrefix+"/c/{username}/subscribe", protected(d.Users.Subscribe))
	mux.Handle("DELETE "+apiPrefix+"/c/{username}/subscribe", protected(d.Users.Unsubscribe))
	mux.Handle("GET "+apiPrefix+"/history", protected(d.Users.WatchHistory))
	mux.Handle("POST "+apiPrefix+"/history", protected(d.Users.AddToWatchHistory))

	return LoggingMiddleware(d.Logger)(SecurityHeadersMiddleware()(MetricsMiddleware(d.Metrics)(mux)))
}
