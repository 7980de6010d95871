package eventlog

import (
	"log/slog"
	"slices"

	"github.com/oklog/ulid/v2"

	"jobcontroller/internal/dispatcher"
	"jobcontroller/pkg/cloudevent"
)

// EventTypePrefix prefixes the CloudEvent type of forwarded log entries.
const EventTypePrefix = "jobcontroller.event."

// Forwarder is a Sink that mirrors log entries to an HTTP callback as CloudEvents.
type Forwarder struct {
	jobID      string
	source     string
	url        string
	signingKey string
	filter     []string
	dispatch   dispatcher.Dispatcher
	logger     *slog.Logger
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	JobID      string
	URL        string
	SigningKey string
	// Filter limits forwarding to these event names. Empty forwards everything.
	Filter []string
}

// NewForwarder returns a Forwarder delivering through d.
func NewForwarder(cfg ForwarderConfig, d dispatcher.Dispatcher) *Forwarder {
	return &Forwarder{
		jobID:      cfg.JobID,
		source:     "jobcontroller/" + cfg.JobID,
		url:        cfg.URL,
		signingKey: cfg.SigningKey,
		filter:     cfg.Filter,
		dispatch:   d,
		logger:     slog.With("component", "forwarder", "jobId", cfg.JobID),
	}
}

// Forward queues entry for delivery. Delivery failures never reach the caller.
func (f *Forwarder) Forward(entry Entry) {
	if len(f.filter) > 0 && !slices.Contains(f.filter, entry.Name) {
		return
	}
	err := f.dispatch.Dispatch(&dispatcher.Event{
		Payload:     f.Build(entry),
		Destination: f.url,
		SigningKey:  f.signingKey,
	})
	if err != nil {
		f.logger.Warn("Event not forwarded", "event", entry.Name, "error", err)
	}
}

// Build converts a log entry into a CloudEvent.
func (f *Forwarder) Build(entry Entry) *cloudevent.CloudEvent {
	data := map[string]any{
		"jobId":       f.jobID,
		"eventNumber": int(entry.Number),
		"eventName":   entry.Name,
		"attrs":       entry.Attrs,
	}
	return cloudevent.New(EventTypePrefix+entry.Name, f.source, f.jobID, ulid.Make().String(), entry.Time, data)
}

var _ Sink = (*Forwarder)(nil)
