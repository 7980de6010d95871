package remotecall

import (
	"context"
	"fmt"
	"log/slog"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/job"
	"jobcontroller/internal/resource"
)

// Notifier turns agent event records into durable log events and holds.
type Notifier struct {
	proxy   *resource.Proxy
	job     *job.Job
	log     eventlog.Log
	metrics MetricsRecorder
	logger  *slog.Logger
}

// NewNotifier returns a Notifier for the job running on proxy. metrics may be nil.
func NewNotifier(proxy *resource.Proxy, metrics MetricsRecorder) *Notifier {
	j := proxy.Job()
	return &Notifier{
		proxy:   proxy,
		job:     j,
		log:     j.EventLog(),
		metrics: metrics,
		logger:  slog.With("component", "notifier", "jobId", j.ID()),
	}
}

// LogEvent writes the event described by raw. When the event asks for a hold, or is
// a critical remote error, the slot is exited, the job is held and the returned error
// is a *job.Termination. A critical error's Termination also carries the fatal
// diagnostic.
func (n *Notifier) LogEvent(ctx context.Context, raw *attr.Record) error {
	rec := raw.Clone()
	rec.Remove(attr.EventTime)

	ev, err := eventlog.FromRecord(rec)
	if err != nil {
		n.logger.Warn("Invalid event record", "error", err, "record", rec.String())
		return err
	}

	var hold *job.Hold
	if code, ok := rec.LookupInt(attr.HoldReasonCode); ok && code > 0 {
		sub, _ := rec.LookupInt(attr.HoldReasonSubCode)
		reason, _ := rec.LookupString(attr.HoldReason)
		hold = &job.Hold{Code: int(code), SubCode: int(sub), Reason: reason}
	}

	var critical string
	alreadyLogged := false
	if ev.Number == eventlog.RemoteError {
		if ev.ExecuteHost() == "" {
			ev.SetExecuteHost(n.proxy.MachineName())
		}
		if ev.Critical() {
			critical = fmt.Sprintf("Error from %s: %s", ev.ExecuteHost(), ev.ErrorText())
			if hold == nil {
				hold = &job.Hold{Code: job.CriticalErrorHoldCode}
			}
			hold.Reason = critical
			// Critical errors are recorded only as a controller exception.
			if err := n.log.WriteException(critical); err != nil {
				n.logger.Error("Exception not logged", "error", err)
			} else {
				n.recordLogged(ctx, eventlog.ControllerException)
			}
			alreadyLogged = true
		}
	}

	var writeErr error
	if !alreadyLogged {
		if err := n.log.WriteEvent(ev); err != nil {
			n.logger.Error("Unable to log event", "event", ev.Number.String(), "error", err)
			writeErr = apperrors.Internal("eventlog.write", err)
		} else {
			n.recordLogged(ctx, ev.Number)
		}
	}

	if hold != nil {
		if hold.Reason == "" {
			hold.Reason = job.DefaultHoldReason
		}
		n.proxy.ResourceExit(job.ReasonShouldHold, -1)
		term := n.job.Hold(ctx, *hold)
		term.Fatal = critical
		if n.metrics != nil {
			n.metrics.RecordHold(ctx, hold.Code)
		}
		return term
	}
	return writeErr
}

func (n *Notifier) recordLogged(ctx context.Context, num eventlog.Number) {
	if n.metrics != nil {
		n.metrics.RecordEventLogged(ctx, num.String())
	}
}
