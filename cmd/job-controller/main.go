// job-controller supervises one job on behalf of the job queue: it serves the remote
// calls of the agent running the job and exits once the job is held or fails.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"jobcontroller/internal/api"
	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/config"
	"jobcontroller/internal/dispatcher"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/health"
	"jobcontroller/internal/job"
	"jobcontroller/internal/observability"
	"jobcontroller/internal/queue"
	"jobcontroller/internal/remotecall"
	"jobcontroller/internal/resource"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	err := run()
	var term *job.Termination
	switch {
	case errors.As(err, &term):
		if term.Fatal != "" {
			slog.Error(term.Fatal, "exitCode", term.ExitCode())
		}
		os.Exit(term.ExitCode())
	case err != nil:
		slog.Error("Controller failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg := config.LoadControllerConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	dispatcherCfg := dispatcher.LoadConfigFromEnv()

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	store, err := queue.OpenSQLite(cfg.QueueDB)
	if err != nil {
		return err
	}

	rec, err := loadJobRecord(ctx, cfg, store)
	if err != nil {
		store.Close()
		return err
	}

	// Forwarded events go through the callback dispatcher
	eventDispatcher := dispatcher.NewMemory(dispatcherCfg, metrics)
	var logOpts []eventlog.Option
	if cfg.EventCallbackURL != "" {
		logOpts = append(logOpts, eventlog.WithSink(eventlog.NewForwarder(eventlog.ForwarderConfig{
			JobID:      cfg.JobID,
			URL:        cfg.EventCallbackURL,
			SigningKey: cfg.EventCallbackKey,
		}, eventDispatcher)))
		slog.Info("Forwarding job events", "url", cfg.EventCallbackURL)
	}
	eventLog, err := eventlog.OpenFile(cfg.UserLog, logOpts...)
	if err != nil {
		store.Close()
		return err
	}

	j := job.New(cfg.JobID, rec, store, eventLog)
	var callOpts []remotecall.Option
	callOpts = append(callOpts, remotecall.WithMetrics(metrics))
	if cfg.ParallelLeader {
		callOpts = append(callOpts, remotecall.WithLeader(resource.NewProxy("leader", j)))
	}
	calls := remotecall.NewDispatcher(resource.NewProxy("slot1", j), callOpts...)

	// Create health checker
	healthChecker := health.NewChecker(map[string]health.ReadinessChecker{
		"queue":      health.ReadinessFunc(store.Ping),
		"remotecall": calls,
	})

	terminated := make(chan *job.Termination, 1)
	router := api.NewRouter(api.RouterConfig{
		Calls:         calls,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        cfg.APIKey,
		OnTerminate: func(term *job.Termination) {
			select {
			case terminated <- term:
			default:
			}
		},
	})

	if cfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting call server", "port", cfg.Port, "jobId", cfg.JobID)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes the servers, then the job's event log, dispatcher and store.
	shutdown := func(timeout time.Duration) error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var result *multierror.Error
		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
		if err := j.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := eventDispatcher.Close(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := eventLog.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := store.Close(); err != nil {
			result = multierror.Append(result, err)
		}

		stats := eventDispatcher.Stats()
		slog.Info("Dispatcher stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
			"abandoned", stats.Abandoned,
		)
		return result.ErrorOrNil()
	}

	// Wait for a termination outcome, interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case term := <-terminated:
		slog.Info("Supervision ended", "exitCode", term.ExitCode())
		healthChecker.SetShuttingDown()
		if err := shutdown(10 * time.Second); err != nil {
			slog.Error("Cleanup after termination failed", "error", err)
		}
		return term
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		if cerr := shutdown(5 * time.Second); cerr != nil {
			slog.Error("Cleanup failed", "error", cerr)
		}
		return err
	}

	// Phase 1: Mark controller as unhealthy so the agent stops being routed here
	healthChecker.SetShuttingDown()

	if cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: Finish in-flight calls, then flush and close everything
	slog.Info("Starting graceful shutdown")
	if err := shutdown(25 * time.Second); err != nil {
		return err
	}

	slog.Info("Shutdown complete")
	return nil
}

// loadJobRecord reads the job record file and overlays what the queue already holds
// for the job, so a restarted controller resumes with the persisted state.
func loadJobRecord(ctx context.Context, cfg *config.ControllerConfig, store queue.Store) (*attr.Record, error) {
	rec, err := attr.LoadFile(cfg.JobAdFile)
	if err != nil {
		return nil, err
	}

	stored, err := store.Load(ctx, cfg.JobID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if err := store.Save(ctx, cfg.JobID, rec); err != nil {
			return nil, err
		}
		slog.Info("Job registered in queue", "jobId", cfg.JobID, "attrs", rec.Len())
	case err != nil:
		return nil, err
	default:
		rec.Update(stored)
		slog.Info("Job resumed from queue", "jobId", cfg.JobID, "attrs", rec.Len())
	}
	return rec, nil
}
