package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"jobcontroller/internal/observability"
	"jobcontroller/pkg/callclient"
)

// rejectCall answers a request the middleware refuses in the call wire format, so the
// agent's client reports it like any failed call.
func rejectCall(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(callclient.Response{Result: -1, Error: msg})
}

// callName extracts the call from a /v1/calls/{call} path, or "" for other routes.
func callName(path string) string {
	name, ok := strings.CutPrefix(path, callclient.CallsPath)
	if !ok {
		return ""
	}
	return name
}

// LoggingMiddleware logs HTTP requests at debug level; call outcomes are logged by the
// dispatcher.
func LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"agent", r.RemoteAddr,
				"duration", time.Since(start),
			}
			if call := callName(r.URL.Path); call != "" {
				attrs = append(attrs, "call", call)
			}
			slog.DebugContext(r.Context(), "HTTP request", attrs...)
		})
	}
}

// MetricsMiddleware records HTTP request latency, traffic and errors.
func MetricsMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start).Seconds())
		})
	}
}

// RecoveryMiddleware turns a panicking call into a failed call result.
func RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					slog.ErrorContext(r.Context(), "Panic recovered", "call", callName(r.URL.Path), "error", p)
					rejectCall(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeMiddleware refuses call bodies that are not JSON. A missing Content-Type
// is accepted, since argument-less calls send no body.
func ContentTypeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ct := r.Header.Get("Content-Type"); ct != "" {
					mediaType, _, err := mime.ParseMediaType(ct)
					if err != nil || mediaType != "application/json" {
						rejectCall(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
						return
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware requires "Authorization: Bearer <apiKey>". An empty apiKey disables
// authentication.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				rejectCall(w, http.StatusUnauthorized, "bearer token required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				slog.WarnContext(r.Context(), "Rejected call with bad API key", "call", callName(r.URL.Path), "agent", r.RemoteAddr)
				rejectCall(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
