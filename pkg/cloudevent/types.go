// Package cloudevent provides CloudEvents 1.0 types and an HTTP sender for them.
package cloudevent

import (
	"errors"
	"fmt"
	"time"
)

const (
	// SpecVersion is the CloudEvents version every event declares.
	SpecVersion = "1.0"
	// ContentType is the structured-mode media type.
	ContentType = "application/cloudevents+json"
)

// ErrInvalidEvent marks an event missing a required attribute.
var ErrInvalidEvent = errors.New("invalid cloudevent")

// CloudEvent is a structured-mode CloudEvents 1.0 event.
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject,omitempty"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data,omitempty"`
}

// New returns an event of eventType stamped at. A zero at means now.
func New(eventType, source, subject, id string, at time.Time, data map[string]any) *CloudEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return &CloudEvent{
		SpecVersion:     SpecVersion,
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            at.UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Validate checks the attributes CloudEvents requires.
func (e *CloudEvent) Validate() error {
	for attr, v := range map[string]string{
		"specversion": e.SpecVersion,
		"type":        e.Type,
		"source":      e.Source,
		"id":          e.ID,
	} {
		if v == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidEvent, attr)
		}
	}
	return nil
}
