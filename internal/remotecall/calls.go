package remotecall

import (
	"context"
	"os"
	"runtime"
	"strings"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/fileaccess"
	"jobcontroller/internal/job"
	"jobcontroller/internal/resource"
)

// undefinedText is returned by getJobAttr for attributes the job does not have.
const undefinedText = "UNDEFINED"

// RegisterMachineInfo records the agent's address and host and begins execution.
func (d *Dispatcher) RegisterMachineInfo(ctx context.Context, starterAddr, hostName string) (err error) {
	done, err := d.enter(ctx, CallRegisterMachineInfo, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	return d.proxy.RegisterMachineInfo(starterAddr, hostName)
}

// RegisterStarterInfo stores the agent's capability record.
func (d *Dispatcher) RegisterStarterInfo(ctx context.Context, info *attr.Record) (err error) {
	done, err := d.enter(ctx, CallRegisterStarterInfo, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	if info == nil {
		return apperrors.Protocol("info", "starter info record is required")
	}
	d.proxy.SetStarterInfo(info)
	return nil
}

// RegisterJobInfo merges an agent update into the job record.
func (d *Dispatcher) RegisterJobInfo(ctx context.Context, update *attr.Record) (err error) {
	done, err := d.enter(ctx, CallRegisterJobInfo, update)
	if err != nil {
		return err
	}
	defer done(&err)

	if update == nil {
		return apperrors.Protocol("update", "job info record is required")
	}
	d.ingest(update)
	return nil
}

// BeginExecution moves the slot to EXECUTING.
func (d *Dispatcher) BeginExecution(ctx context.Context) (err error) {
	done, err := d.enter(ctx, CallBeginExecution, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	if err := d.proxy.BeginExecution(); err != nil {
		return apperrors.Internal("eventlog.write", err)
	}
	return nil
}

// GetJobInfo returns a copy of the job record with controller attributes published.
// The caller owns the returned record.
func (d *Dispatcher) GetJobInfo(ctx context.Context) (rec *attr.Record, owned bool, err error) {
	done, err := d.enter(ctx, CallGetJobInfo, nil)
	if err != nil {
		return nil, false, err
	}
	defer done(&err)

	target := d.target()
	target.InitFileTransfer()
	d.job.PublishControllerAttrs(target.JobRecord())
	return target.JobRecord().Clone(), true, nil
}

// GetUserInfo returns the uid and gid the job runs as. The record is built on first
// use and kept for the life of the dispatcher.
func (d *Dispatcher) GetUserInfo(ctx context.Context) (rec *attr.Record, err error) {
	done, err := d.enter(ctx, CallGetUserInfo, nil)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	if d.user == nil {
		d.user = attr.New()
		if runtime.GOOS != "windows" {
			d.user.SetInt(attr.UID, int64(os.Getuid()))
			d.user.SetInt(attr.GID, int64(os.Getgid()))
		}
	}
	return d.user.Clone(), nil
}

// JobExit records the end of the execution attempt and updates the queue.
func (d *Dispatcher) JobExit(ctx context.Context, status, reason int, update *attr.Record) (err error) {
	done, err := d.enter(ctx, CallJobExit, update)
	if err != nil {
		return err
	}
	defer done(&err)

	if d.proxy.State() == resource.StateExited {
		d.logger.Warn("Ignoring repeated job exit", "reason", reason, "status", status,
			"recordedReason", d.proxy.ExitReason())
		return nil
	}
	if normalized := job.NormalizeReason(reason); normalized != reason {
		d.logger.Debug("Old agent exit reason shifted", "from", reason, "to", normalized)
		reason = normalized
	}
	if job.CountsAsCompletion(reason) {
		d.proxy.IncrementJobCompletionCount()
	}
	d.ingest(update)
	d.proxy.ResourceExit(reason, status)
	return d.job.UpdateInQueue(ctx)
}

// JobTermination records how the job process ended.
func (d *Dispatcher) JobTermination(ctx context.Context, update *attr.Record) (err error) {
	done, err := d.enter(ctx, CallJobTermination, update)
	if err != nil {
		return err
	}
	defer done(&err)

	if update == nil {
		return apperrors.Protocol("update", "termination record is required")
	}
	var info job.ExitInfo
	info.BySignal, _ = update.LookupBool(attr.OnExitBySignal)
	info.CoreDumped, _ = update.LookupBool(attr.JobCoreDumped)
	info.Reason, _ = update.LookupString(attr.ExitReason)
	if sig, ok := update.LookupInt(attr.OnExitSignal); ok {
		info.ExitSignal = int(sig)
	}
	if code, ok := update.LookupInt(attr.OnExitCode); ok {
		info.ExitCode = int(code)
	}
	return d.job.Terminate(ctx, info)
}

// RegisterMasterInfo records the parallel job leader's address.
func (d *Dispatcher) RegisterMasterInfo(ctx context.Context, info *attr.Record) (err error) {
	done, err := d.enter(ctx, CallRegisterMasterInfo, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	addr, ok := info.LookupString(attr.ParallelMasterAddr)
	if !ok {
		return apperrors.Protocol(attr.ParallelMasterAddr, "master info record has no "+attr.ParallelMasterAddr)
	}
	return d.job.SetMasterInfo(addr)
}

// GetFileInfo resolves a logical file name to an access URL.
func (d *Dispatcher) GetFileInfo(ctx context.Context, logicalName string) (url string, err error) {
	done, err := d.enter(ctx, CallGetFileInfo, nil)
	if err != nil {
		return "", err
	}
	defer done(&err)

	if logicalName == "" {
		return "", apperrors.Protocol("logicalName", "logical file name is required")
	}
	return d.resolver.Resolve(logicalName), nil
}

// GetBufferInfo returns the job's default I/O buffer configuration.
func (d *Dispatcher) GetBufferInfo(ctx context.Context) (info fileaccess.BufferInfo, err error) {
	done, err := d.enter(ctx, CallGetBufferInfo, nil)
	if err != nil {
		return fileaccess.BufferInfo{}, err
	}
	defer done(&err)

	return d.resolver.BufferInfo(), nil
}

// LogEvent writes an agent event to the job event log. A hold requested by the event
// is returned as a *job.Termination.
func (d *Dispatcher) LogEvent(ctx context.Context, rec *attr.Record) (err error) {
	done, err := d.enter(ctx, CallLogEvent, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	if rec == nil {
		return apperrors.Protocol("event", "event record is required")
	}
	return d.notifier.LogEvent(ctx, rec)
}

// GetJobAd returns a copy of the job record.
func (d *Dispatcher) GetJobAd(ctx context.Context) (rec *attr.Record, err error) {
	done, err := d.enter(ctx, CallGetJobAd, nil)
	if err != nil {
		return nil, err
	}
	defer done(&err)

	return d.target().JobRecord().Clone(), nil
}

// GetJobAttr returns the expression text of name, or UNDEFINED.
func (d *Dispatcher) GetJobAttr(ctx context.Context, name string) (expr string, err error) {
	done, err := d.enter(ctx, CallGetJobAttr, nil)
	if err != nil {
		return "", err
	}
	defer done(&err)

	return d.jobAttr(name)
}

func (d *Dispatcher) jobAttr(name string) (string, error) {
	if name == "" {
		return "", apperrors.Protocol("name", "attribute name is required")
	}
	v, ok := d.target().JobRecord().Lookup(name)
	if !ok {
		d.logger.Debug("Job attribute is undefined", "name", name)
		return undefinedText, nil
	}
	return v.Text(), nil
}

// SetJobAttr assigns an expression to a job attribute in the queue and the job record.
func (d *Dispatcher) SetJobAttr(ctx context.Context, name, expr string, log bool) (err error) {
	done, err := d.enter(ctx, CallSetJobAttr, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	return d.setJobAttr(ctx, name, expr, log)
}

func (d *Dispatcher) setJobAttr(ctx context.Context, name, expr string, log bool) error {
	if err := d.target().Job().UpdateAttr(ctx, name, expr, log); err != nil {
		return err
	}
	d.logger.Info("Job attribute set", "name", name, "expr", expr)
	return nil
}

// ConstrainRequirements sets AgentRequirements and ANDs it into Requirements.
func (d *Dispatcher) ConstrainRequirements(ctx context.Context, expr string) (err error) {
	done, err := d.enter(ctx, CallConstrainRequirements, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	if strings.TrimSpace(expr) == "" {
		return apperrors.Protocol("expr", "constraint expression is required")
	}
	if err := d.setJobAttr(ctx, attr.AgentRequirements, expr, false); err != nil {
		return err
	}
	reqs, err := d.jobAttr(attr.Requirements)
	if err != nil {
		return err
	}
	if strings.Contains(reqs, attr.AgentRequirements) {
		d.logger.Debug("Requirements already refer to AgentRequirements")
		return nil
	}
	return d.setJobAttr(ctx, attr.Requirements, "("+reqs+") && "+attr.AgentRequirements, false)
}

// SessionInfo holds the negotiated reconnect and file-transfer sessions.
type SessionInfo struct {
	Reconnect    resource.Session `json:"reconnect"`
	FileTransfer resource.Session `json:"fileTransfer"`
}

// GetSecSessionInfo negotiates security sessions with the agent.
func (d *Dispatcher) GetSecSessionInfo(ctx context.Context, reconnectHint, fileTransferHint string) (info SessionInfo, err error) {
	done, err := d.enter(ctx, CallGetSecSessionInfo, nil)
	if err != nil {
		return SessionInfo{}, err
	}
	defer done(&err)

	rc, ft, err := d.target().SecSessionInfo(ctx, reconnectHint, fileTransferHint)
	if err != nil {
		return SessionInfo{}, apperrors.Internal("session.negotiate", err)
	}
	return SessionInfo{Reconnect: rc, FileTransfer: ft}, nil
}

// NotifyEvent handles agent notifications. Unknown notifications and malformed fields
// are ignored; the call always succeeds.
func (d *Dispatcher) NotifyEvent(ctx context.Context, rec *attr.Record) (err error) {
	done, err := d.enter(ctx, CallNotifyEvent, nil)
	if err != nil {
		return err
	}
	defer done(&err)

	eventType, ok := rec.LookupString(attr.EventType)
	if !ok {
		return nil
	}
	switch eventType {
	case "ActivationExecutionExit":
		d.proxy.RecordActivationExitExecutionTime(d.proxy.Now())
	default:
		d.logger.Debug("Ignoring notification", "eventType", eventType)
	}
	return nil
}
