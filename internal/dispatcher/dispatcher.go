// Package dispatcher delivers forwarded job events to an HTTP callback in the
// background, with buffering and retry.
package dispatcher

import (
	"context"
	"errors"

	"jobcontroller/pkg/cloudevent"
)

// ErrBufferFull is returned when the dispatcher's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("dispatcher buffer full, event dropped")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher forwards job events to a callback without blocking the caller. Forwarding
// is best effort: the durable event log is the record, so a lost forward never fails
// the call that logged the event.
type Dispatcher interface {
	// Dispatch queues event. It returns ErrBufferFull when the event is dropped and
	// ErrClosed after Close.
	Dispatch(event *Event) error
	Stats() Stats
	// Close drains queued events until ctx expires.
	Close(ctx context.Context) error
}

// Event is one forwarded job event.
type Event struct {
	Payload     *cloudevent.CloudEvent
	Destination string // callback URL
	SigningKey  string // HMAC key, empty sends unsigned
}

// Stats counts events by outcome. Queued = Delivered + Failed + Abandoned + QueueDepth
// once in-flight deliveries settle.
type Stats struct {
	QueueDepth   int
	Queued       int64
	Delivered    int64
	Failed       int64 // rejected or out of retries
	Dropped      int64 // refused by a full buffer, never queued
	Abandoned    int64 // still pending when the drain deadline passed
	RetriesTotal int64
}
