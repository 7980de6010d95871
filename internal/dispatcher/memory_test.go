package dispatcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobcontroller/internal/testutil"
	"jobcontroller/pkg/cloudevent"
)

func fastConfig(workers int) MemoryConfig {
	return MemoryConfig{
		BufferSize:     100,
		Workers:        workers,
		HTTPTimeout:    5 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	}
}

func testEvent(url string) *Event {
	return &Event{
		Payload:     cloudevent.New("jobcontroller.event.ExecuteEvent", "jobcontroller/test", "job-1", "evt-1", time.Time{}, nil),
		Destination: url,
	}
}

func closeDispatcher(t *testing.T, d *MemoryDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Close(ctx)
}

func TestMemoryDispatcher_Dispatch(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(2), nil)
	defer closeDispatcher(t, d)

	if err := d.Dispatch(testEvent(server.URL)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	testutil.Eventually(t, "delivery to the server", func() bool {
		return received.Load() >= 1
	}, testutil.Within(5*time.Second))

	testutil.Eventually(t, "the delivered count", func() bool {
		return d.Stats().Delivered == 1
	}, testutil.Within(5*time.Second))
}

func TestMemoryDispatcher_BufferFull(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	cfg := fastConfig(1)
	cfg.BufferSize = 2
	d := NewMemory(cfg, nil)
	defer closeDispatcher(t, d)

	for range 5 {
		_ = d.Dispatch(testEvent(server.URL))
	}

	if d.Stats().Dropped == 0 {
		t.Error("expected some events to be dropped")
	}
}

func TestMemoryDispatcher_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(1), nil)
	defer closeDispatcher(t, d)

	d.Dispatch(testEvent(server.URL))

	testutil.Eventually(t, "delivery after retries", func() bool {
		return d.Stats().Delivered >= 1
	}, testutil.Within(5*time.Second))

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if d.Stats().RetriesTotal < 2 {
		t.Errorf("expected retries to be counted, got %d", d.Stats().RetriesTotal)
	}
}

func TestMemoryDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(1), nil)
	defer closeDispatcher(t, d)

	d.Dispatch(testEvent(server.URL))

	testutil.Eventually(t, "the failure after retries", func() bool {
		return d.Stats().Failed >= 1
	}, testutil.Within(5*time.Second))

	if attempts.Load() != 4 {
		t.Errorf("expected 4 attempts (1 + 3 retries), got %d", attempts.Load())
	}
}

func TestMemoryDispatcher_NoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(1), nil)
	defer closeDispatcher(t, d)

	d.Dispatch(testEvent(server.URL))

	testutil.Eventually(t, "the 4xx failure", func() bool {
		return d.Stats().Failed >= 1
	}, testutil.Within(5*time.Second))

	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts.Load())
	}
}

func TestMemoryDispatcher_Signature(t *testing.T) {
	var mu sync.Mutex
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(1), nil)
	defer closeDispatcher(t, d)

	event := testEvent(server.URL)
	event.SigningKey = "secret-key"
	d.Dispatch(event)

	testutil.Eventually(t, "signed delivery", func() bool {
		return d.Stats().Delivered >= 1
	}, testutil.Within(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	if ct := headers.Get("Content-Type"); ct != "application/cloudevents+json" {
		t.Errorf("expected cloudevents content type, got %s", ct)
	}
	if ce := headers.Get("Ce-Type"); ce != "jobcontroller.event.ExecuteEvent" {
		t.Errorf("unexpected Ce-Type header %q", ce)
	}
	sig := headers.Get("X-Signature-256")
	if len(sig) < 10 || sig[:7] != "sha256=" {
		t.Errorf("unexpected signature format: %s", sig)
	}
}

func TestMemoryDispatcher_GracefulShutdown(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewMemory(fastConfig(2), nil)
	for range 10 {
		d.Dispatch(testEvent(server.URL))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if received.Load() != 10 {
		t.Errorf("expected 10 deliveries, got %d", received.Load())
	}

	if err := d.Dispatch(testEvent(server.URL)); err != ErrClosed {
		t.Errorf("Dispatch after Close = %v, want ErrClosed", err)
	}
}

func TestMemoryDispatcher_DrainTimeoutAbandons(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d := NewMemory(fastConfig(1), nil)
	for range 3 {
		if err := d.Dispatch(testEvent(server.URL)); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close = %v, want deadline exceeded", err)
	}

	stats := d.Stats()
	if stats.Delivered != 0 || stats.Abandoned < 2 {
		t.Errorf("stats after timed-out drain = %+v", stats)
	}
	if stats.Delivered+stats.Failed+stats.Abandoned != stats.Queued {
		t.Errorf("outcomes do not add up to queued: %+v", stats)
	}
}
