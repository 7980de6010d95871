package api

import (
	"net/http"

	"jobcontroller/internal/health"
	"jobcontroller/internal/job"
	"jobcontroller/internal/observability"
	"jobcontroller/internal/remotecall"
	"jobcontroller/pkg/callclient"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Calls         *remotecall.Dispatcher
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
	OnTerminate   func(*job.Termination)
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Calls, cfg.HealthChecker, cfg.OnTerminate)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Remote calls - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST "+callclient.CallsPath+"{call}", authMiddleware(http.HandlerFunc(handler.Call)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
