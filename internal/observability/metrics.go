package observability

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records what the controller does for its job: HTTP traffic, remote calls
// served, events logged, holds, and forwarding outcomes.
type Metrics struct {
	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
	httpErrors   metric.Int64Counter

	callDuration metric.Float64Histogram
	calls        metric.Int64Counter
	callFailures metric.Int64Counter

	eventsLogged metric.Int64Counter
	holds        metric.Int64Counter

	forwardDuration  metric.Float64Histogram
	forwardDelivered metric.Int64Counter
	forwardFailed    metric.Int64Counter
	forwardDropped   metric.Int64Counter
}

// instruments creates instruments on a meter, keeping the first error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter("jobcontroller_"+name, metric.WithDescription(desc))
	in.err = errors.Join(in.err, err)
	return c
}

func (in *instruments) seconds(name, desc string, bounds ...float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram("jobcontroller_"+name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	in.err = errors.Join(in.err, err)
	return h
}

// NewMetrics builds the instruments on an OpenTelemetry meter exported through a
// dedicated Prometheus registry, and returns the handler serving that registry.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	in := &instruments{meter: provider.Meter("jobcontroller")}
	m := &Metrics{
		httpDuration: in.seconds("http_request_duration_seconds", "HTTP request latency",
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
		httpRequests: in.counter("http_requests_total", "HTTP requests served"),
		httpErrors:   in.counter("http_errors_total", "HTTP requests answered 4xx or 5xx"),

		callDuration: in.seconds("remote_call_duration_seconds", "Remote call handling latency",
			0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
		calls:        in.counter("remote_calls_total", "Remote calls served"),
		callFailures: in.counter("remote_call_failures_total", "Remote calls answered with a failure result"),

		eventsLogged: in.counter("events_logged_total", "Events written to the job event log"),
		holds:        in.counter("job_holds_total", "Times the job was put on hold"),

		forwardDuration: in.seconds("event_forward_duration_seconds", "Event forwarding latency including retries",
			0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
		forwardDelivered: in.counter("events_forwarded_total", "Events delivered to the callback"),
		forwardFailed:    in.counter("event_forward_failures_total", "Events the callback rejected or that ran out of retries"),
		forwardDropped:   in.counter("events_dropped_total", "Events dropped by a full forwarding buffer"),
	}
	if in.err != nil {
		return nil, nil, in.err
	}

	return m, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), nil
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		keyMethod.String(method),
		keyRoute.String(route(path)),
		keyStatus.String(statusClass(statusCode)),
	)
	m.httpDuration.Record(ctx, durationSeconds, attrs)
	m.httpRequests.Add(ctx, 1, attrs)
	if statusCode >= 400 {
		m.httpErrors.Add(ctx, 1, attrs)
	}
}

// RecordCall records one served remote call.
func (m *Metrics) RecordCall(ctx context.Context, call string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(keyCall.String(call), keySuccess.Bool(success))
	m.callDuration.Record(ctx, durationSeconds, attrs)
	m.calls.Add(ctx, 1, attrs)
	if !success {
		m.callFailures.Add(ctx, 1, metric.WithAttributes(keyCall.String(call)))
	}
}

// RecordEventLogged records an event written to the job event log.
func (m *Metrics) RecordEventLogged(ctx context.Context, eventName string) {
	m.eventsLogged.Add(ctx, 1, metric.WithAttributes(keyEvent.String(eventName)))
}

// RecordHold records the job being put on hold with the given reason code.
func (m *Metrics) RecordHold(ctx context.Context, code int) {
	m.holds.Add(ctx, 1, metric.WithAttributes(keyCode.Int(code)))
}

// RecordDispatcherDelivered records a forwarded event and how long delivery took.
func (m *Metrics) RecordDispatcherDelivered(ctx context.Context, durationSeconds float64) {
	m.forwardDelivered.Add(ctx, 1)
	m.forwardDuration.Record(ctx, durationSeconds)
}

// RecordDispatcherFailed records an event that could not be forwarded.
func (m *Metrics) RecordDispatcherFailed(ctx context.Context) {
	m.forwardFailed.Add(ctx, 1)
}

// RecordDispatcherDropped records an event refused by a full forwarding buffer.
func (m *Metrics) RecordDispatcherDropped(ctx context.Context) {
	m.forwardDropped.Add(ctx, 1)
}
