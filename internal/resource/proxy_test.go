package resource

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"jobcontroller/internal/attr"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/job"
	"jobcontroller/internal/queue"
)

func newTestProxy(t *testing.T, opts ...Option) (*Proxy, *eventlog.Memory) {
	t.Helper()
	rec := attr.New()
	rec.SetString(attr.Iwd, "/home/joe")
	log := eventlog.NewMemory()
	j := job.New("9.0", rec, queue.NewMemory(), log)
	return NewProxy("slot1", j, opts...), log
}

func TestState_String(t *testing.T) {
	t.Parallel()
	if StateStartup.String() != "STARTUP" || StateExecuting.String() != "EXECUTING" || StateExited.String() != "EXITED" {
		t.Error("unexpected state names")
	}
	if State(9).String() != "State(9)" {
		t.Errorf("got %q", State(9).String())
	}
}

func TestProxy_RegisterMachineInfoBeginsExecution(t *testing.T) {
	t.Parallel()
	p, log := newTestProxy(t)

	for range 2 {
		if err := p.RegisterMachineInfo("<10.0.0.1:9618>", "node1.example.org"); err != nil {
			t.Fatalf("RegisterMachineInfo: %v", err)
		}
	}
	if p.State() != StateExecuting {
		t.Errorf("state = %v, want EXECUTING", p.State())
	}
	if p.MachineName() != "node1.example.org" || p.StarterAddress() != "<10.0.0.1:9618>" {
		t.Errorf("identity not recorded: %q %q", p.MachineName(), p.StarterAddress())
	}
	entries := log.Entries()
	if len(entries) != 1 || entries[0].Number != eventlog.Execute {
		t.Fatalf("expected exactly one execute event, got %v", log.Numbers())
	}
	if host, _ := entries[0].Attrs.LookupString(attr.ExecuteHost); host != "<10.0.0.1:9618>" {
		t.Errorf("ExecuteHost = %q", host)
	}
	if st, _ := p.JobRecord().LookupInt(attr.JobState); st != job.StateRunning {
		t.Errorf("JobState = %d, want running", st)
	}
}

func TestProxy_EnsureExecuting(t *testing.T) {
	t.Parallel()
	p, log := newTestProxy(t)

	if !p.EnsureExecuting("jobExit") {
		t.Error("expected a synthesized transition from STARTUP")
	}
	if p.EnsureExecuting("jobExit") {
		t.Error("no transition expected once executing")
	}
	if got := log.Numbers(); !slices.Equal(got, []eventlog.Number{eventlog.Execute}) {
		t.Errorf("events = %v", got)
	}
}

func TestProxy_ResourceExitTwice(t *testing.T) {
	t.Parallel()
	p, _ := newTestProxy(t)
	p.BeginExecution()

	if !p.ResourceExit(job.ReasonExited, 0) {
		t.Fatal("first exit should be recorded")
	}
	if p.ResourceExit(job.ReasonKilled, 9) {
		t.Error("second exit should be ignored")
	}
	if p.State() != StateExited || p.ExitReason() != job.ReasonExited || p.ExitStatus() != 0 {
		t.Errorf("recorded exit corrupted: %v %d %d", p.State(), p.ExitReason(), p.ExitStatus())
	}
	if err := p.BeginExecution(); err != nil || p.State() != StateExited {
		t.Error("EXITED must be terminal")
	}
}

func TestProxy_IncrementJobCompletionCount(t *testing.T) {
	t.Parallel()
	p, _ := newTestProxy(t)
	p.JobRecord().SetInt(attr.NumJobCompletions, 2)
	p.IncrementJobCompletionCount()
	if n, _ := p.JobRecord().LookupInt(attr.NumJobCompletions); n != 3 {
		t.Errorf("NumJobCompletions = %d, want 3", n)
	}
	if p.Completions() != 1 {
		t.Errorf("Completions = %d", p.Completions())
	}
}

func TestProxy_RecordActivationExit(t *testing.T) {
	t.Parallel()
	at := time.Unix(1700000000, 0)
	p, _ := newTestProxy(t, WithClock(func() time.Time { return at }))
	p.RecordActivationExitExecutionTime(p.Now())
	if got, _ := p.JobRecord().LookupInt(attr.ActivationExitExecutionTime); got != at.Unix() {
		t.Errorf("ActivationExitExecutionTime = %d", got)
	}
	if !p.ActivationExitExecutionTime().Equal(at) {
		t.Error("activation time not kept on proxy")
	}
}

func TestProxy_InitFileTransferOnce(t *testing.T) {
	t.Parallel()
	p, _ := newTestProxy(t)
	p.InitFileTransfer()
	p.InitFileTransfer()
	if !p.FileTransferInitialized() {
		t.Error("file transfer should be initialized")
	}
}

type failingNegotiator struct{}

func (failingNegotiator) Negotiate(ctx context.Context, peerInfo string) (Session, error) {
	return Session{}, errors.New("no common crypto method")
}

func TestProxy_SecSessionInfo(t *testing.T) {
	t.Parallel()
	p, _ := newTestProxy(t)
	ctx := context.Background()

	rc, ft, err := p.SecSessionInfo(ctx, "[CryptoMethods=\"AES\"]", "[CryptoMethods=\"AES\"]")
	if err != nil {
		t.Fatalf("SecSessionInfo: %v", err)
	}
	if rc.ID == "" || rc.ID == ft.ID || len(rc.Key) != 64 || rc.Key == ft.Key {
		t.Errorf("sessions should have distinct ids and keys: %+v %+v", rc, ft)
	}

	if _, _, err := p.SecSessionInfo(ctx, "", "x"); !errors.Is(err, ErrNoSessionInfo) {
		t.Errorf("expected ErrNoSessionInfo, got %v", err)
	}

	failing, _ := newTestProxy(t, WithNegotiator(failingNegotiator{}))
	if _, _, err := failing.SecSessionInfo(ctx, "a", "b"); err == nil {
		t.Error("expected negotiation failure")
	}
}
