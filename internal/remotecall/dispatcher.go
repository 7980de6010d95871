// Package remotecall serves the calls the execution agent makes back to the
// controller. Every call is handled to completion before the next one starts.
package remotecall

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/fileaccess"
	"jobcontroller/internal/job"
	"jobcontroller/internal/resource"
)

// Remote call names.
const (
	CallRegisterMachineInfo   = "registerMachineInfo"
	CallRegisterStarterInfo   = "registerStarterInfo"
	CallRegisterJobInfo       = "registerJobInfo"
	CallBeginExecution        = "beginExecution"
	CallGetJobInfo            = "getJobInfo"
	CallGetUserInfo           = "getUserInfo"
	CallJobExit               = "jobExit"
	CallJobTermination        = "jobTermination"
	CallRegisterMasterInfo    = "registerMasterInfo"
	CallGetFileInfo           = "getFileInfo"
	CallGetBufferInfo         = "getBufferInfo"
	CallLogEvent              = "logEvent"
	CallGetJobAd              = "getJobAd"
	CallGetJobAttr            = "getJobAttr"
	CallSetJobAttr            = "setJobAttr"
	CallConstrainRequirements = "constrainRequirements"
	CallGetSecSessionInfo     = "getSecSessionInfo"
	CallNotifyEvent           = "notifyEvent"
)

// Calls lists every remote call name.
var Calls = []string{
	CallRegisterMachineInfo, CallRegisterStarterInfo, CallRegisterJobInfo, CallBeginExecution,
	CallGetJobInfo, CallGetUserInfo, CallJobExit, CallJobTermination, CallRegisterMasterInfo,
	CallGetFileInfo, CallGetBufferInfo, CallLogEvent, CallGetJobAd, CallGetJobAttr,
	CallSetJobAttr, CallConstrainRequirements, CallGetSecSessionInfo, CallNotifyEvent,
}

// impliesExecution marks lifecycle calls: receiving one while the slot is still in
// STARTUP means beginExecution was lost, so it is replayed first. The function sees
// the call's update record, if any.
var impliesExecution = map[string]func(update *attr.Record) bool{
	CallJobExit:        always,
	CallJobTermination: always,
	// Agents send resource updates without JobState before the job starts.
	CallRegisterJobInfo: func(update *attr.Record) bool { return update.Has(attr.JobState) },
}

func always(*attr.Record) bool { return true }

// updateFixups renames or drops attributes agents must not set. An empty target
// drops the attribute.
var updateFixups = []struct{ from, to string }{
	// Only the queue sets the date of the first execution; agent copies are stale.
	{attr.JobStartDate, ""},
}

// fixUpdate applies updateFixups to a copy of update.
func fixUpdate(update *attr.Record) *attr.Record {
	fixed := update.Clone()
	for _, f := range updateFixups {
		v, ok := fixed.Remove(f.from)
		if !ok {
			continue
		}
		if f.to != "" {
			fixed.Set(f.to, v)
			slog.Debug("Renamed agent attribute", "from", f.from, "to", f.to)
		} else {
			slog.Debug("Dropped agent attribute", "name", f.from, "value", v.Text())
		}
	}
	return fixed
}

// MetricsRecorder is an optional interface for recording call metrics.
type MetricsRecorder interface {
	RecordCall(ctx context.Context, call string, success bool, durationSeconds float64)
	RecordEventLogged(ctx context.Context, eventName string)
	RecordHold(ctx context.Context, code int)
}

// Dispatcher serves remote calls for one job.
type Dispatcher struct {
	mu         sync.Mutex
	job        *job.Job
	proxy      *resource.Proxy
	leader     *resource.Proxy
	resolver   *fileaccess.Resolver
	notifier   *Notifier
	metrics    MetricsRecorder
	user       *attr.Record
	terminated *job.Termination
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLeader routes job record and security session calls to the parallel job's
// leader slot.
func WithLeader(p *resource.Proxy) Option {
	return func(d *Dispatcher) { d.leader = p }
}

// WithMetrics records call metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher for the job running on proxy.
func NewDispatcher(proxy *resource.Proxy, opts ...Option) *Dispatcher {
	j := proxy.Job()
	d := &Dispatcher{
		job:      j,
		proxy:    proxy,
		resolver: fileaccess.NewResolver(j.Record()),
		logger:   slog.With("component", "remotecall", "jobId", j.ID()),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.notifier = NewNotifier(proxy, d.metrics)
	return d
}

// Proxy returns the default execution slot.
func (d *Dispatcher) Proxy() *resource.Proxy { return d.proxy }

// target is the slot job record calls are addressed to.
func (d *Dispatcher) target() *resource.Proxy {
	if d.leader != nil {
		return d.leader
	}
	return d.proxy
}

// enter serializes the call, replays a missed beginExecution for lifecycle calls and
// returns the function that finishes the call.
func (d *Dispatcher) enter(ctx context.Context, call string, update *attr.Record) (func(*error), error) {
	d.mu.Lock()
	if d.terminated != nil {
		d.mu.Unlock()
		return nil, apperrors.Policy(call, "controller is terminating")
	}
	if implies, ok := impliesExecution[call]; ok && implies(update) {
		d.proxy.EnsureExecuting(call)
	}
	start := time.Now()
	return func(errp *error) {
		defer d.mu.Unlock()
		err := *errp
		var term *job.Termination
		switch {
		case errors.As(err, &term):
			d.terminated = term
			d.logger.Warn("Call ended supervision", "call", call, "exitCode", term.ExitCode())
		case err != nil:
			d.logger.Warn("Call failed", "call", call, "error", err)
		default:
			d.logger.Debug("Call served", "call", call)
		}
		if d.metrics != nil {
			d.metrics.RecordCall(ctx, call, err == nil, time.Since(start).Seconds())
		}
	}, nil
}

// ingest fixes up an agent update and merges it into the job record.
func (d *Dispatcher) ingest(update *attr.Record) {
	if update == nil {
		return
	}
	d.proxy.UpdateFromStarter(fixUpdate(update))
}

// Terminated returns the outcome that ended supervision, or nil while calls are
// still being served.
func (d *Dispatcher) Terminated() *job.Termination {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.terminated
}

// Ready reports whether the dispatcher still serves calls.
func (d *Dispatcher) Ready(ctx context.Context) error {
	if term := d.Terminated(); term != nil {
		return term
	}
	return nil
}
