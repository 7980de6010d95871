package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"

	"jobcontroller/pkg/cloudevent"
)

// MemoryDispatcher delivers events from a bounded in-memory queue with a worker pool.
// A full queue drops the event. Close stops intake and lets workers drain what is
// queued; when the drain deadline passes, in-flight deliveries are cancelled and the
// rest of the queue is abandoned.
type MemoryDispatcher struct {
	sender  *cloudevent.Sender
	config  MemoryConfig
	logger  *slog.Logger
	metrics MetricsRecorder

	// mu guards queue against a send racing with close.
	mu     sync.RWMutex
	queue  chan *Event
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queued       atomic.Int64
	delivered    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	abandoned    atomic.Int64
	retriesTotal atomic.Int64
}

// MetricsRecorder is an optional interface for recording dispatcher metrics.
type MetricsRecorder interface {
	RecordDispatcherDelivered(ctx context.Context, durationSeconds float64)
	RecordDispatcherFailed(ctx context.Context)
	RecordDispatcherDropped(ctx context.Context)
}

// NewMemory creates a new in-memory dispatcher and starts its workers.
func NewMemory(cfg MemoryConfig, metrics MetricsRecorder) *MemoryDispatcher {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	d := &MemoryDispatcher{
		sender:  cloudevent.NewSender(cfg.HTTPTimeout, cfg.Workers),
		config:  cfg,
		logger:  slog.With("component", "dispatcher"),
		metrics: metrics,
		queue:   make(chan *Event, cfg.BufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go d.worker()
	}

	d.logger.Info("Dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Dispatch queues an event for delivery without blocking.
func (d *MemoryDispatcher) Dispatch(event *Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- event:
		d.queued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherDropped(context.Background())
		}
		d.logger.Warn("Event dropped, buffer full",
			"destination", extractHost(event.Destination),
			"type", event.Payload.Type,
		)
		return ErrBufferFull
	}
}

// Stats returns current dispatcher statistics.
func (d *MemoryDispatcher) Stats() Stats {
	return Stats{
		QueueDepth:   len(d.queue),
		Queued:       d.queued.Load(),
		Delivered:    d.delivered.Load(),
		Failed:       d.failed.Load(),
		Dropped:      d.dropped.Load(),
		Abandoned:    d.abandoned.Load(),
		RetriesTotal: d.retriesTotal.Load(),
	}
}

// Close stops intake and waits for queued events to be delivered. If ctx expires
// first, outstanding deliveries are cancelled and counted as abandoned.
func (d *MemoryDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("Dispatcher draining", "queued", len(d.queue))

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("Dispatcher drained",
			"delivered", d.delivered.Load(),
			"failed", d.failed.Load(),
			"dropped", d.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		d.logger.Warn("Dispatcher drain timed out", "abandoned", d.abandoned.Load())
		return ctx.Err()
	}
}

func (d *MemoryDispatcher) worker() {
	defer d.wg.Done()
	for event := range d.queue {
		if d.ctx.Err() != nil {
			d.abandoned.Add(1)
			continue
		}
		d.deliver(event)
	}
}

func (d *MemoryDispatcher) deliver(event *Event) {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.DeliveryDeadline)
	defer cancel()

	start := time.Now()
	err := d.sendWithRetry(ctx, event)
	switch {
	case err == nil:
		d.delivered.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherDelivered(ctx, time.Since(start).Seconds())
		}
	case errors.Is(err, context.Canceled) && d.ctx.Err() != nil:
		d.abandoned.Add(1)
	default:
		d.failed.Add(1)
		if d.metrics != nil {
			d.metrics.RecordDispatcherFailed(context.Background())
		}
		d.logger.Warn("Delivery failed",
			"destination", extractHost(event.Destination),
			"type", event.Payload.Type,
			"id", event.Payload.ID,
			"error", err,
		)
	}
}

// sendWithRetry retries retryable failures with exponential backoff. Other failures
// are returned immediately.
func (d *MemoryDispatcher) sendWithRetry(ctx context.Context, event *Event) error {
	opts := cloudevent.SendOptions{SigningKey: event.SigningKey}

	return retry.Do(
		func() error {
			return d.sender.Send(ctx, event.Destination, event.Payload, opts)
		},
		retry.Context(ctx),
		retry.Attempts(uint(d.config.MaxRetries+1)),
		retry.Delay(d.config.InitialBackoff),
		retry.MaxDelay(d.config.MaxBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(cloudevent.Retryable),
		retry.OnRetry(func(n uint, err error) {
			d.retriesTotal.Add(1)
			d.logger.Debug("Retrying delivery", "attempt", n+1, "id", event.Payload.ID, "error", err)
		}),
	)
}

// extractHost returns the host of a callback URL for logging, keeping credentials and
// paths out of the log.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

var _ Dispatcher = (*MemoryDispatcher)(nil)
