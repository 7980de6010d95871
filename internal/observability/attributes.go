// Package observability provides the controller's metrics.
package observability

import (
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const (
	keyMethod  = attribute.Key("method")
	keyRoute   = attribute.Key("route")
	keyStatus  = attribute.Key("status")
	keyCall    = attribute.Key("call")
	keyEvent   = attribute.Key("event")
	keyCode    = attribute.Key("code")
	keySuccess = attribute.Key("success")
)

const callsPrefix = "/v1/calls/"

// route collapses call paths to one series; the call name is labelled on the call
// metrics instead.
func route(path string) string {
	if len(path) > len(callsPrefix) && strings.HasPrefix(path, callsPrefix) {
		return callsPrefix + "{call}"
	}
	return path
}

// statusClass buckets a status code as 2xx, 4xx, 5xx.
func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
