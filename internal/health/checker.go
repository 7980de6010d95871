// Package health answers the controller's liveness and readiness probes.
package health

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// ReadinessChecker reports whether one dependency can serve calls.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// Ready calls f.
func (f ReadinessFunc) Ready(ctx context.Context) error { return f(ctx) }

// Status is a probe outcome.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the probe body.
type Response struct {
	Status Status                 `json:"status"`
	Uptime string                 `json:"uptime,omitempty"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// IsHealthy reports whether the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

const (
	checkTimeout = 5 * time.Second
	cacheFor     = time.Second
)

// Checker runs the named readiness checks. Results are cached briefly so probe
// bursts do not hit the queue store on every request.
type Checker struct {
	checks  map[string]ReadinessChecker
	started time.Time
	logger  *slog.Logger

	mu           sync.Mutex
	checkedAt    time.Time
	cached       *Response
	wasReady     bool
	shuttingDown bool
}

// NewChecker returns a Checker over checks. A checker with no checks is never ready.
func NewChecker(checks map[string]ReadinessChecker) *Checker {
	return &Checker{
		checks:   checks,
		started:  time.Now(),
		logger:   slog.With("component", "health"),
		wasReady: true,
	}
}

// Liveness reports the process is up. It checks no dependencies.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
		Uptime: time.Since(c.started).Round(time.Second).String(),
	}
}

// Readiness runs every check concurrently. The controller is ready only when all of
// them pass and it is not shutting down.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "controller is shutting down"},
			},
		}
	}
	if c.cached != nil && time.Since(c.checkedAt) < cacheFor {
		cached := c.cached
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	response := c.runChecks(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shuttingDown {
		return response
	}
	c.cached = response
	c.checkedAt = time.Now()
	if ready := response.IsHealthy(); ready != c.wasReady {
		c.wasReady = ready
		if ready {
			c.logger.Info("Controller ready")
		} else {
			c.logger.Warn("Controller not ready", "checks", response.Checks)
		}
	}
	return response
}

func (c *Checker) runChecks(ctx context.Context) *Response {
	if len(c.checks) == 0 {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"controller": {Status: StatusUnhealthy, Message: "no readiness checks configured"},
			},
		}
	}

	names := slices.Sorted(maps.Keys(c.checks))
	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check(ctx, c.checks[name])
		}()
	}
	wg.Wait()

	response := &Response{Status: StatusHealthy, Checks: make(map[string]CheckResult, len(names))}
	for i, name := range names {
		response.Checks[name] = results[i]
		if results[i].Status != StatusHealthy {
			response.Status = StatusUnhealthy
		}
	}
	return response
}

func check(ctx context.Context, rc ReadinessChecker) CheckResult {
	if rc == nil {
		return CheckResult{Status: StatusUnhealthy, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := rc.Ready(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// SetShuttingDown fails every later readiness probe.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
	c.cached = nil
}
