package apperrors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

func TestProtocol(t *testing.T) {
	t.Parallel()
	err := Protocol("EventTypeNumber", "event record has no event type")

	if !errors.Is(err, ErrProtocol) {
		t.Error("expected error to match ErrProtocol")
	}
	if err.Error() != "event record has no event type" {
		t.Errorf("unexpected message %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "EventTypeNumber" {
		t.Errorf("expected field 'EventTypeNumber', got %q", appErr.Field)
	}
}

func TestPolicy(t *testing.T) {
	t.Parallel()
	err := Policy("notifyEvent", "unsupported event")

	if !errors.Is(err, ErrPolicy) {
		t.Error("expected error to match ErrPolicy")
	}
	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Call != "notifyEvent" {
		t.Errorf("expected call 'notifyEvent', got %q", appErr.Call)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("attribute", "Owner")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "attribute Owner not found" {
		t.Errorf("expected message 'attribute Owner not found', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "attribute" {
		t.Errorf("expected resource 'attribute', got %q", appErr.Resource)
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("database is locked")
	err := Internal("queue.save", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if err.Error() != "queue.save: database is locked" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "queue.save" {
		t.Errorf("expected op 'queue.save', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestInternal_MatchesCause(t *testing.T) {
	t.Parallel()
	err := Internal("queue.load", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) || !errors.Is(err, ErrInternal) {
		t.Errorf("errors.Is should match both sentinel and cause: %v", err)
	}

	nested := Internal("session.negotiate", Protocol("hint", "bad hint"))
	if got := HTTPStatus(nested); got != http.StatusInternalServerError {
		t.Errorf("HTTPStatus of internal wrapping protocol = %d, want 500", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"protocol", Protocol("f", "bad"), http.StatusBadRequest},
		{"not found", NotFound("attribute", "x"), http.StatusNotFound},
		{"policy", Policy("call", "refused"), http.StatusConflict},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusInternalServerError},
		{"sentinel protocol", ErrProtocol, http.StatusBadRequest},
		{"sentinel policy", ErrPolicy, http.StatusConflict},
		{"wrapped protocol", fmt.Errorf("wrap: %w", Protocol("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestResultCode(t *testing.T) {
	t.Parallel()
	if got := ResultCode(nil); got != ResultOK {
		t.Errorf("ResultCode(nil) = %d, want %d", got, ResultOK)
	}
	for _, err := range []error{Protocol("f", "m"), Policy("c", "m"), ErrInternal, fmt.Errorf("x")} {
		if got := ResultCode(err); got != ResultError {
			t.Errorf("ResultCode(%v) = %d, want %d", err, got, ResultError)
		}
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := Protocol("id", "required")
	wrapped := fmt.Errorf("dispatch: %w", original)
	doubleWrapped := fmt.Errorf("handler: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrProtocol) {
		t.Error("expected errors.Is to find ErrProtocol through multiple wraps")
	}
}
