// Package job holds the controller-side state of the supervised job: its
// authoritative record, queue persistence, holds and termination bookkeeping.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/queue"
)

// Version is published to the job record as ControllerVersion.
var Version = "dev"

// UniverseParallel marks a multi-agent job.
const UniverseParallel = 11

// ExitInfo is how the job process ended, as reported by jobTermination.
type ExitInfo struct {
	Reason     string
	BySignal   bool
	ExitCode   int
	ExitSignal int
	CoreDumped bool
}

// Job is the controller's view of the job it supervises. Calls are serialized by the
// remote-call dispatcher, so Job itself does no locking.
type Job struct {
	id         string
	rec        *attr.Record
	store      queue.Store
	log        eventlog.Log
	masterAddr string
	now        func() time.Time
	logger     *slog.Logger
}

// New returns a Job for rec, persisting through store and logging to log.
func New(id string, rec *attr.Record, store queue.Store, log eventlog.Log) *Job {
	return &Job{
		id:     id,
		rec:    rec,
		store:  store,
		log:    log,
		now:    time.Now,
		logger: slog.With("jobId", id),
	}
}

func (j *Job) ID() string { return j.id }

// Record returns the authoritative job record. Callers share it by reference.
func (j *Job) Record() *attr.Record { return j.rec }

// EventLog returns the durable job event log.
func (j *Job) EventLog() eventlog.Log { return j.log }

// Iwd returns the job's initial working directory.
func (j *Job) Iwd() string {
	s, _ := j.rec.LookupString(attr.Iwd)
	return s
}

// IsParallel reports whether this is a multi-agent job.
func (j *Job) IsParallel() bool {
	u, _ := j.rec.LookupInt(attr.JobUniverse)
	return u == UniverseParallel
}

// MasterAddr returns the address registered by the parallel job's leader.
func (j *Job) MasterAddr() string { return j.masterAddr }

// SetMasterInfo records the leader's address. It fails for jobs that are not parallel.
func (j *Job) SetMasterInfo(addr string) error {
	if !j.IsParallel() {
		return apperrors.Policy("registerMasterInfo", "received master info for a job that is not a parallel job")
	}
	j.masterAddr = addr
	j.rec.SetString(attr.ParallelMasterAddr, addr)
	return nil
}

// PublishControllerAttrs adds the controller's own attributes to rec.
func (j *Job) PublishControllerAttrs(rec *attr.Record) {
	rec.SetString(attr.ControllerVersion, Version)
}

// UpdateFromAgent merges an already fixed-up agent update into the job record.
func (j *Job) UpdateFromAgent(update *attr.Record) {
	j.rec.Update(update)
	j.logger.Debug("Merged agent update", "attrs", update.Len())
}

// UpdateInQueue persists the whole job record.
func (j *Job) UpdateInQueue(ctx context.Context) error {
	if err := j.store.Save(ctx, j.id, j.rec); err != nil {
		j.logger.Error("Queue update failed", "error", err)
		return err
	}
	return nil
}

// UpdateAttr sets name to the expression expr in the queue and, on success, in the
// job record. When log is set an AttributeUpdate event is written as well.
func (j *Job) UpdateAttr(ctx context.Context, name, expr string, log bool) error {
	if name == "" {
		return apperrors.Protocol("name", "attribute name is required")
	}
	if err := j.store.SetAttr(ctx, j.id, name, expr); err != nil {
		return err
	}
	j.rec.SetExpr(name, expr)
	if !log {
		return nil
	}
	ev := attr.New()
	ev.SetString("Attribute", name)
	ev.SetString("Value", expr)
	return j.log.WriteEvent(eventlog.New(eventlog.AttributeUpdate, ev))
}

// Terminate records how the job ended, persists it and writes a JobTerminated event.
func (j *Job) Terminate(ctx context.Context, info ExitInfo) error {
	j.rec.SetBool(attr.OnExitBySignal, info.BySignal)
	if info.BySignal {
		j.rec.SetInt(attr.OnExitSignal, int64(info.ExitSignal))
		j.rec.Remove(attr.OnExitCode)
	} else {
		j.rec.SetInt(attr.OnExitCode, int64(info.ExitCode))
		j.rec.Remove(attr.OnExitSignal)
	}
	j.rec.SetBool(attr.JobCoreDumped, info.CoreDumped)
	if info.Reason != "" {
		j.rec.SetString(attr.ExitReason, info.Reason)
	}
	if err := j.UpdateInQueue(ctx); err != nil {
		return err
	}

	ev := attr.New()
	ev.SetBool(attr.OnExitBySignal, info.BySignal)
	if info.BySignal {
		ev.SetInt(attr.OnExitSignal, int64(info.ExitSignal))
	} else {
		ev.SetInt(attr.OnExitCode, int64(info.ExitCode))
	}
	ev.SetBool(attr.JobCoreDumped, info.CoreDumped)
	if err := j.log.WriteEvent(eventlog.New(eventlog.Terminated, ev)); err != nil {
		return apperrors.Internal("eventlog.write", err)
	}
	j.logger.Info("Job terminated", "bySignal", info.BySignal, "exitCode", info.ExitCode, "signal", info.ExitSignal)
	return nil
}

// Hold puts the job on hold in the queue and returns the Termination that ends
// supervision. Failing to persist the hold is logged; the job is still terminated.
func (j *Job) Hold(ctx context.Context, h Hold) *Termination {
	j.rec.SetInt(attr.JobState, StateHeld)
	j.rec.SetString(attr.HoldReason, h.Reason)
	j.rec.SetInt(attr.HoldReasonCode, int64(h.Code))
	j.rec.SetInt(attr.HoldReasonSubCode, int64(h.SubCode))
	j.rec.SetInt(attr.EnteredCurrentStatus, j.now().Unix())

	if err := j.UpdateInQueue(ctx); err != nil {
		j.logger.Error("Hold not persisted", "error", err)
	}

	ev := attr.New()
	ev.SetString(attr.HoldReason, h.Reason)
	ev.SetInt(attr.HoldReasonCode, int64(h.Code))
	ev.SetInt(attr.HoldReasonSubCode, int64(h.SubCode))
	if err := j.log.WriteEvent(eventlog.New(eventlog.Held, ev)); err != nil {
		j.logger.Error("Held event not logged", "error", err)
	}

	j.logger.Warn("Job held", "reason", h.Reason, "code", h.Code, "subCode", h.SubCode)
	return &Termination{Hold: &h}
}

// Shutdown flushes the event log. It is part of the outer loop's cleanup.
func (j *Job) Shutdown(ctx context.Context) error {
	if err := j.log.Flush(); err != nil {
		return fmt.Errorf("flush event log: %w", err)
	}
	return nil
}
