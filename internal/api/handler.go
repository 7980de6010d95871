// Package api serves the remote-call surface and health probes over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/health"
	"jobcontroller/internal/job"
	"jobcontroller/internal/remotecall"
	"jobcontroller/pkg/callclient"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// callFunc serves one remote call. A nil result means a bare success response.
type callFunc func(ctx context.Context, r *http.Request) (any, error)

// Handler contains HTTP handlers for the remote-call surface.
type Handler struct {
	calls       *remotecall.Dispatcher
	health      *health.Checker
	onTerminate func(*job.Termination)
	routes      map[string]callFunc
}

// NewHandler creates a new API handler. onTerminate receives the outcome of the call
// that ended supervision, after the agent has been answered.
func NewHandler(calls *remotecall.Dispatcher, healthChecker *health.Checker, onTerminate func(*job.Termination)) *Handler {
	h := &Handler{
		calls:       calls,
		health:      healthChecker,
		onTerminate: onTerminate,
	}
	if calls != nil {
		h.routes = callRoutes(calls)
	}
	return h
}

// Call handles POST /v1/calls/{call}
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("call")
	fn, ok := h.routes[name]
	if !ok {
		h.handleError(w, r, name, apperrors.NotFound("call", name))
		return
	}

	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	out, err := fn(r.Context(), r)
	if err != nil {
		h.handleError(w, r, name, err)
		return
	}
	if out == nil {
		out = callclient.Response{}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 once the queue store is unreachable or the job has been terminated.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleError answers a failed call with its result code. A termination outcome is
// passed on once the response is written.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, call string, err error) {
	resp := callclient.Response{Result: apperrors.ResultCode(err), Error: err.Error()}

	var term *job.Termination
	if errors.As(err, &term) {
		slog.Warn("Call terminated the job", "call", call, "exitCode", term.ExitCode())
		h.writeJSON(w, http.StatusServiceUnavailable, resp)
		if h.onTerminate != nil {
			h.onTerminate(term)
		}
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "call", call, "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Call rejected", "call", call, "error", err, "status", status)
	}
	h.writeJSON(w, status, resp)
}

// bind decodes the JSON request body into Req before calling fn. An empty body
// leaves Req zero.
func bind[Req any](fn func(ctx context.Context, req Req) (any, error)) callFunc {
	return func(ctx context.Context, r *http.Request) (any, error) {
		var req Req
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return nil, apperrors.Protocol("body", "invalid request body: "+err.Error())
		}
		return fn(ctx, req)
	}
}

// noArgs serves a call that takes no arguments.
func noArgs(fn func(ctx context.Context) (any, error)) callFunc {
	return func(ctx context.Context, _ *http.Request) (any, error) { return fn(ctx) }
}

func callRoutes(d *remotecall.Dispatcher) map[string]callFunc {
	record := func(call func(context.Context, *attr.Record) error) callFunc {
		return bind(func(ctx context.Context, req callclient.RecordRequest) (any, error) {
			return nil, call(ctx, req.Record)
		})
	}

	return map[string]callFunc{
		remotecall.CallRegisterMachineInfo: bind(func(ctx context.Context, req callclient.MachineInfoRequest) (any, error) {
			return nil, d.RegisterMachineInfo(ctx, req.StarterAddr, req.HostName)
		}),
		remotecall.CallRegisterStarterInfo: record(d.RegisterStarterInfo),
		remotecall.CallRegisterJobInfo:     record(d.RegisterJobInfo),
		remotecall.CallBeginExecution: noArgs(func(ctx context.Context) (any, error) {
			return nil, d.BeginExecution(ctx)
		}),
		remotecall.CallGetJobInfo: noArgs(func(ctx context.Context) (any, error) {
			rec, owned, err := d.GetJobInfo(ctx)
			return callclient.RecordResponse{Record: rec, Owned: owned}, err
		}),
		remotecall.CallGetUserInfo: noArgs(func(ctx context.Context) (any, error) {
			rec, err := d.GetUserInfo(ctx)
			return callclient.RecordResponse{Record: rec, Owned: true}, err
		}),
		remotecall.CallJobExit: bind(func(ctx context.Context, req callclient.JobExitRequest) (any, error) {
			return nil, d.JobExit(ctx, req.Status, req.Reason, req.Update)
		}),
		remotecall.CallJobTermination:     record(d.JobTermination),
		remotecall.CallRegisterMasterInfo: record(d.RegisterMasterInfo),
		remotecall.CallGetFileInfo: bind(func(ctx context.Context, req callclient.FileInfoRequest) (any, error) {
			url, err := d.GetFileInfo(ctx, req.LogicalName)
			return callclient.FileInfoResponse{URL: url}, err
		}),
		remotecall.CallGetBufferInfo: noArgs(func(ctx context.Context) (any, error) {
			info, err := d.GetBufferInfo(ctx)
			return callclient.BufferInfoResponse{BufferInfo: callclient.BufferInfo(info)}, err
		}),
		remotecall.CallLogEvent: record(d.LogEvent),
		remotecall.CallGetJobAd: noArgs(func(ctx context.Context) (any, error) {
			rec, err := d.GetJobAd(ctx)
			return callclient.RecordResponse{Record: rec, Owned: true}, err
		}),
		remotecall.CallGetJobAttr: bind(func(ctx context.Context, req callclient.JobAttrRequest) (any, error) {
			expr, err := d.GetJobAttr(ctx, req.Name)
			return callclient.JobAttrResponse{Expr: expr}, err
		}),
		remotecall.CallSetJobAttr: bind(func(ctx context.Context, req callclient.JobAttrRequest) (any, error) {
			return nil, d.SetJobAttr(ctx, req.Name, req.Expr, req.Log)
		}),
		remotecall.CallConstrainRequirements: bind(func(ctx context.Context, req callclient.ConstrainRequest) (any, error) {
			return nil, d.ConstrainRequirements(ctx, req.Expr)
		}),
		remotecall.CallGetSecSessionInfo: bind(func(ctx context.Context, req callclient.SecSessionRequest) (any, error) {
			info, err := d.GetSecSessionInfo(ctx, req.ReconnectHint, req.FileTransferHint)
			return callclient.SecSessionResponse{
				Reconnect:    callclient.Session(info.Reconnect),
				FileTransfer: callclient.Session(info.FileTransfer),
			}, err
		}),
		remotecall.CallNotifyEvent: record(d.NotifyEvent),
	}
}
