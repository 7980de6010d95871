package remotecall

import (
	"context"
	"errors"
	"slices"
	"testing"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
	"jobcontroller/internal/eventlog"
	"jobcontroller/internal/job"
	"jobcontroller/internal/resource"
)

func executing(t *testing.T, f *fixture) {
	t.Helper()
	if err := f.d.RegisterMachineInfo(context.Background(), "<10.0.0.7:9618>", "exec7.example.org"); err != nil {
		t.Fatalf("RegisterMachineInfo: %v", err)
	}
}

func TestLogEvent_Written(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	executing(t, f)

	ev := mustParse(t, "MyType = \"JobImageSizeEvent\"\nEventTime = 12345\nSize = 2048")
	if err := f.d.LogEvent(context.Background(), ev); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	entries := f.log.Entries()
	last := entries[len(entries)-1]
	if last.Number != eventlog.ImageSize {
		t.Fatalf("last event = %v", last.Number)
	}
	if last.Attrs.Has(attr.EventTime) {
		t.Error("client timestamp must be stripped")
	}
	if n, _ := last.Attrs.LookupInt("Size"); n != 2048 {
		t.Errorf("Size = %d", n)
	}
	if !ev.Has(attr.EventTime) {
		t.Error("caller's record should not be modified")
	}
}

func TestLogEvent_Invalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	err := f.d.LogEvent(context.Background(), mustParse(t, "EventTypeNumber = 999"))
	if !errors.Is(err, apperrors.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if apperrors.ResultCode(err) != apperrors.ResultError {
		t.Error("invalid event should report failure")
	}
	if len(f.log.Entries()) != 0 {
		t.Error("invalid event must not be logged")
	}
}

func TestLogEvent_WriteFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	f.log.WriteErr = errors.New("disk full")

	err := f.d.LogEvent(context.Background(), mustParse(t, "EventTypeNumber = 8"))
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	var term *job.Termination
	if errors.As(err, &term) {
		t.Error("a write failure must not hold the job")
	}
}

func TestLogEvent_HoldRequested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, baseJob)
	executing(t, f)

	ev := mustParse(t, "EventTypeNumber = 8\nHoldReasonCode = 34\nHoldReasonSubCode = 2\nHoldReason = \"memory limit exceeded\"")
	err := f.d.LogEvent(ctx, ev)

	var term *job.Termination
	if !errors.As(err, &term) {
		t.Fatalf("expected Termination, got %v", err)
	}
	if term.Hold == nil || *term.Hold != (job.Hold{Code: 34, SubCode: 2, Reason: "memory limit exceeded"}) {
		t.Errorf("hold = %+v", term.Hold)
	}
	if term.Fatal != "" || term.ExitCode() != job.ExitHold {
		t.Errorf("unexpected termination %+v", term)
	}
	if f.proxy.State() != resource.StateExited || f.proxy.ExitReason() != job.ReasonShouldHold || f.proxy.ExitStatus() != -1 {
		t.Errorf("slot exit = %v %d %d", f.proxy.State(), f.proxy.ExitReason(), f.proxy.ExitStatus())
	}
	want := []eventlog.Number{eventlog.Execute, eventlog.Generic, eventlog.Held}
	if got := f.log.Numbers(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	stored, _ := f.store.Load(ctx, "12.0")
	if code, _ := stored.LookupInt(attr.HoldReasonCode); code != 34 {
		t.Errorf("stored HoldReasonCode = %d", code)
	}

	if _, err := f.d.GetFileInfo(ctx, "x"); !errors.Is(err, apperrors.ErrPolicy) {
		t.Errorf("calls after termination should be refused, got %v", err)
	}
}

func TestLogEvent_HoldDefaultReason(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	err := f.d.LogEvent(context.Background(), mustParse(t, "EventTypeNumber = 8\nHoldReasonCode = 1"))
	var term *job.Termination
	if !errors.As(err, &term) {
		t.Fatalf("expected Termination, got %v", err)
	}
	if term.Hold.Reason != job.DefaultHoldReason {
		t.Errorf("reason = %q", term.Hold.Reason)
	}
}

func TestLogEvent_ZeroHoldCodeIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	if err := f.d.LogEvent(context.Background(), mustParse(t, "EventTypeNumber = 8\nHoldReasonCode = 0")); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
}

func TestLogEvent_RecoverableRemoteError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	executing(t, f)

	ev := mustParse(t, "MyType = \"RemoteErrorEvent\"\nErrorMsg = \"transient failure\"\nCriticalError = false")
	if err := f.d.LogEvent(context.Background(), ev); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	entries := f.log.Entries()
	last := entries[len(entries)-1]
	if last.Number != eventlog.RemoteError {
		t.Fatalf("last event = %v", last.Number)
	}
	if host, _ := last.Attrs.LookupString(attr.ExecuteHost); host != "exec7.example.org" {
		t.Errorf("ExecuteHost = %q, want the slot's machine name", host)
	}
}

func TestLogEvent_CriticalRemoteError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		extra    string
		wantCode int
		wantSub  int
	}{
		{"without hold code", "", job.CriticalErrorHoldCode, 0},
		{"with hold code", "\nHoldReasonCode = 13\nHoldReasonSubCode = 5\nHoldReason = \"ignored\"", 13, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, baseJob)
			executing(t, f)

			ev := mustParse(t, "EventTypeNumber = 21\nExecuteHost = \"slot1@exec7\"\nErrorMsg = \"cannot create sandbox\"\nCriticalError = true"+tt.extra)
			err := f.d.LogEvent(context.Background(), ev)

			var term *job.Termination
			if !errors.As(err, &term) {
				t.Fatalf("expected Termination, got %v", err)
			}
			const diag = "Error from slot1@exec7: cannot create sandbox"
			if term.Fatal != diag {
				t.Errorf("Fatal = %q, want %q", term.Fatal, diag)
			}
			if term.Hold == nil || term.Hold.Code != tt.wantCode || term.Hold.SubCode != tt.wantSub || term.Hold.Reason != diag {
				t.Errorf("hold = %+v", term.Hold)
			}

			var exceptions, remoteErrors, holds int
			for _, e := range f.log.Entries() {
				switch e.Number {
				case eventlog.ControllerException:
					exceptions++
					if msg, _ := e.Attrs.LookupString(attr.Message); msg != diag {
						t.Errorf("exception message = %q", msg)
					}
				case eventlog.RemoteError:
					remoteErrors++
				case eventlog.Held:
					holds++
				}
			}
			if exceptions != 1 || remoteErrors != 0 || holds != 1 {
				t.Errorf("exceptions=%d remoteErrors=%d holds=%d, want 1/0/1", exceptions, remoteErrors, holds)
			}

			f.rec.mu.Lock()
			defer f.rec.mu.Unlock()
			if len(f.rec.holds) != 1 {
				t.Errorf("holds recorded = %v", f.rec.holds)
			}
		})
	}
}

func TestLogEvent_CriticalErrorFillsHost(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseJob)
	executing(t, f)

	err := f.d.LogEvent(context.Background(), mustParse(t, "EventTypeNumber = 21\nErrorMsg = \"boom\"\nCriticalError = true"))
	var term *job.Termination
	if !errors.As(err, &term) {
		t.Fatalf("expected Termination, got %v", err)
	}
	if term.Fatal != "Error from exec7.example.org: boom" {
		t.Errorf("Fatal = %q", term.Fatal)
	}
}
