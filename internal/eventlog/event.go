// Package eventlog types job log events and writes them to the durable job event log.
package eventlog

import (
	"fmt"

	"jobcontroller/internal/apperrors"
	"jobcontroller/internal/attr"
)

// Number discriminates event types in the job event log.
type Number int

const (
	Submit              Number = 0
	Execute             Number = 1
	ExecutableError     Number = 2
	Checkpointed        Number = 3
	Evicted             Number = 4
	Terminated          Number = 5
	ImageSize           Number = 6
	ControllerException Number = 7
	Generic             Number = 8
	Aborted             Number = 9
	Suspended           Number = 10
	Unsuspended         Number = 11
	Held                Number = 12
	Released            Number = 13
	RemoteError         Number = 21
	Disconnected        Number = 22
	Reconnected         Number = 23
	ReconnectFailed     Number = 24
	AttributeUpdate     Number = 28
)

var eventNames = map[Number]string{
	Submit:              "SubmitEvent",
	Execute:             "ExecuteEvent",
	ExecutableError:     "ExecutableErrorEvent",
	Checkpointed:        "CheckpointedEvent",
	Evicted:             "JobEvictedEvent",
	Terminated:          "JobTerminatedEvent",
	ImageSize:           "JobImageSizeEvent",
	ControllerException: "ControllerExceptionEvent",
	Generic:             "GenericEvent",
	Aborted:             "JobAbortedEvent",
	Suspended:           "JobSuspendedEvent",
	Unsuspended:         "JobUnsuspendedEvent",
	Held:                "JobHeldEvent",
	Released:            "JobReleasedEvent",
	RemoteError:         "RemoteErrorEvent",
	Disconnected:        "JobDisconnectedEvent",
	Reconnected:         "JobReconnectedEvent",
	ReconnectFailed:     "JobReconnectFailedEvent",
	AttributeUpdate:     "AttributeUpdateEvent",
}

var eventNumbers = func() map[string]Number {
	m := make(map[string]Number, len(eventNames))
	for n, name := range eventNames {
		m[name] = n
	}
	return m
}()

// String returns the event type name.
func (n Number) String() string {
	if name, ok := eventNames[n]; ok {
		return name
	}
	return fmt.Sprintf("Event(%d)", int(n))
}

// Known reports whether n is a recognized event type.
func (n Number) Known() bool {
	_, ok := eventNames[n]
	return ok
}

// Event is a typed job log event. Its attributes are the payload written to the log.
type Event struct {
	Number Number
	Attrs  *attr.Record
}

// New returns an event of type n carrying a copy of attrs.
func New(n Number, attrs *attr.Record) *Event {
	rec := attrs.Clone()
	rec.SetInt(attr.EventTypeNumber, int64(n))
	rec.SetString(attr.MyType, n.String())
	return &Event{Number: n, Attrs: rec}
}

// FromRecord types a raw event record sent by the agent. The type comes from
// EventTypeNumber or, failing that, the MyType name.
func FromRecord(rec *attr.Record) (*Event, error) {
	if v, ok := rec.Lookup(attr.EventTypeNumber); ok {
		if v.Kind() != attr.KindInt {
			return nil, apperrors.Protocol(attr.EventTypeNumber, fmt.Sprintf("event type number must be an integer, got %s", v.Text()))
		}
		i, _ := v.AsInt()
		n := Number(i)
		if !n.Known() {
			return nil, apperrors.Protocol(attr.EventTypeNumber, fmt.Sprintf("unknown event type number %d", i))
		}
		return New(n, rec), nil
	}
	if name, ok := rec.LookupString(attr.MyType); ok {
		n, known := eventNumbers[name]
		if !known {
			return nil, apperrors.Protocol(attr.MyType, fmt.Sprintf("unknown event type %q", name))
		}
		return New(n, rec), nil
	}
	return nil, apperrors.Protocol(attr.EventTypeNumber, "event record has no event type")
}

// ExecuteHost returns the host the event happened on.
func (e *Event) ExecuteHost() string {
	s, _ := e.Attrs.LookupString(attr.ExecuteHost)
	return s
}

// SetExecuteHost records the host the event happened on.
func (e *Event) SetExecuteHost(host string) {
	e.Attrs.SetString(attr.ExecuteHost, host)
}

// ErrorText returns the message of a remote error event.
func (e *Event) ErrorText() string {
	s, _ := e.Attrs.LookupString(attr.ErrorMsg)
	return s
}

// Critical reports whether a remote error event is marked critical. Events without the
// flag are recoverable.
func (e *Event) Critical() bool {
	b, _ := e.Attrs.LookupBool(attr.CriticalError)
	return e.Number == RemoteError && b
}
