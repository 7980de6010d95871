// Package resource tracks the remote execution slot the job runs on: its identity and
// its startup, executing and exited states.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobcontroller/internal/attr"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/job"
)

// State of an execution slot.
type State int

const (
	StateStartup State = iota
	StateExecuting
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStartup:
		return "STARTUP"
	case StateExecuting:
		return "EXECUTING"
	case StateExited:
		return "EXITED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Proxy is the controller's handle on one execution slot. It is not safe for concurrent
// use; the remote-call dispatcher serializes access.
type Proxy struct {
	name        string
	job         *job.Job
	negotiator  Negotiator
	state       State
	starterAddr string
	machineName string
	starterInfo *attr.Record
	exitReason  int
	exitStatus  int
	completions int
	ftInit      bool
	activation  time.Time
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithNegotiator overrides the security session negotiator.
func WithNegotiator(n Negotiator) Option {
	return func(p *Proxy) { p.negotiator = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Proxy) { p.now = now }
}

// NewProxy returns a proxy in STARTUP for the slot running j.
func NewProxy(name string, j *job.Job, opts ...Option) *Proxy {
	p := &Proxy{
		name:       name,
		job:        j,
		negotiator: NewKeyNegotiator(),
		now:        time.Now,
		logger:     slog.With("component", "resource", "jobId", j.ID(), "slot", name),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Proxy) Name() string { return p.name }

func (p *Proxy) State() State { return p.state }

// Job returns the job this slot runs.
func (p *Proxy) Job() *job.Job { return p.job }

// JobRecord returns the job record as seen through this slot.
func (p *Proxy) JobRecord() *attr.Record { return p.job.Record() }

// SetStarterAddress records the agent's network address.
func (p *Proxy) SetStarterAddress(addr string) {
	p.starterAddr = addr
	p.job.Record().SetString(attr.StarterIPAddr, addr)
}

func (p *Proxy) StarterAddress() string { return p.starterAddr }

// SetMachineName records the host the agent runs on.
func (p *Proxy) SetMachineName(host string) {
	p.machineName = host
	p.job.Record().SetString(attr.RemoteHost, host)
}

func (p *Proxy) MachineName() string { return p.machineName }

// RegisterMachineInfo records the agent's identity and begins execution. Agents that
// send it never call beginExecution themselves.
func (p *Proxy) RegisterMachineInfo(starterAddr, hostName string) error {
	p.SetStarterAddress(starterAddr)
	p.SetMachineName(hostName)
	return p.BeginExecution()
}

// SetStarterInfo stores the agent's capability record.
func (p *Proxy) SetStarterInfo(info *attr.Record) {
	p.starterInfo = info.Clone()
	p.logger.Debug("Stored starter info", "attrs", info.Len())
}

func (p *Proxy) StarterInfo() *attr.Record { return p.starterInfo }

// BeginExecution moves the slot from STARTUP to EXECUTING and writes an Execute event.
// Later calls are logged and ignored.
func (p *Proxy) BeginExecution() error {
	if p.state != StateStartup {
		p.logger.Debug("Begin execution ignored", "state", p.state.String())
		return nil
	}
	p.state = StateExecuting
	rec := p.job.Record()
	rec.SetInt(attr.JobCurrentStartExecutingDate, p.now().Unix())
	rec.SetInt(attr.JobState, job.StateRunning)

	ev := attr.New()
	ev.SetString(attr.ExecuteHost, p.starterAddr)
	if p.machineName != "" {
		ev.SetString(attr.RemoteHost, p.machineName)
	}
	p.logger.Info("Execution began", "host", p.machineName)
	if err := p.job.EventLog().WriteEvent(eventlog.New(eventlog.Execute, ev)); err != nil {
		return fmt.Errorf("log execute event: %w", err)
	}
	return nil
}

// EnsureExecuting repairs a missed beginExecution. It reports whether a transition
// was synthesized.
func (p *Proxy) EnsureExecuting(call string) bool {
	if p.state != StateStartup {
		return false
	}
	p.logger.Debug("Call without begin execution, beginning execution now", "call", call)
	if err := p.BeginExecution(); err != nil {
		p.logger.Error("Begin execution failed", "call", call, "error", err)
	}
	return true
}

// ResourceExit moves the slot to EXITED, recording reason and status. A second exit
// is logged and ignored; the first recorded values are kept.
func (p *Proxy) ResourceExit(reason, status int) bool {
	if p.state == StateExited {
		p.logger.Warn("Duplicate resource exit ignored",
			"reason", reason, "status", status,
			"recordedReason", p.exitReason, "recordedStatus", p.exitStatus)
		return false
	}
	p.state = StateExited
	p.exitReason = reason
	p.exitStatus = status
	p.logger.Info("Resource exited", "reason", reason, "status", status)
	return true
}

func (p *Proxy) ExitReason() int { return p.exitReason }

func (p *Proxy) ExitStatus() int { return p.exitStatus }

// IncrementJobCompletionCount bumps NumJobCompletions on the job record.
func (p *Proxy) IncrementJobCompletionCount() {
	p.completions++
	n, _ := p.job.Record().LookupInt(attr.NumJobCompletions)
	p.job.Record().SetInt(attr.NumJobCompletions, n+1)
}

func (p *Proxy) Completions() int { return p.completions }

// UpdateFromStarter merges an agent update, already fixed up, into the job record.
func (p *Proxy) UpdateFromStarter(update *attr.Record) {
	p.job.UpdateFromAgent(update)
}

// InitFileTransfer prepares file transfer for the job. Only the first call has effect.
func (p *Proxy) InitFileTransfer() {
	if p.ftInit {
		return
	}
	p.ftInit = true
	p.logger.Debug("File transfer initialized", "iwd", p.job.Iwd())
}

func (p *Proxy) FileTransferInitialized() bool { return p.ftInit }

// RecordActivationExitExecutionTime notes when the job's activation exited.
func (p *Proxy) RecordActivationExitExecutionTime(t time.Time) {
	p.activation = t
	p.job.Record().SetInt(attr.ActivationExitExecutionTime, t.Unix())
}

func (p *Proxy) ActivationExitExecutionTime() time.Time { return p.activation }

// Now returns the proxy's clock reading.
func (p *Proxy) Now() time.Time { return p.now() }

// SecSessionInfo negotiates the reconnect and file-transfer security sessions from the
// agent's hints.
func (p *Proxy) SecSessionInfo(ctx context.Context, reconnectHint, fileTransferHint string) (reconnect, fileTransfer Session, err error) {
	reconnect, err = p.negotiator.Negotiate(ctx, reconnectHint)
	if err != nil {
		return Session{}, Session{}, fmt.Errorf("reconnect session: %w", err)
	}
	fileTransfer, err = p.negotiator.Negotiate(ctx, fileTransferHint)
	if err != nil {
		return Session{}, Session{}, fmt.Errorf("file transfer session: %w", err)
	}
	return reconnect, fileTransfer, nil
}
