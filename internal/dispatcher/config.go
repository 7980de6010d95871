package dispatcher

import (
	"time"

	"jobcontroller/internal/config"
)

// Delivery defaults used when the environment does not override them.
const (
	defaultBufferSize     = 1000
	defaultWorkers        = 2
	defaultHTTPTimeout    = 10 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultDeliveryWindow = 30 * time.Second
)

// MemoryConfig holds configuration for the in-memory dispatcher.
type MemoryConfig struct {
	BufferSize     int           // pending events buffer (default: 1000)
	Workers        int           // concurrent delivery goroutines (default: 2)
	HTTPTimeout    time.Duration // per-request timeout (default: 10s)
	MaxRetries     int           // retries after the first attempt (default: 3)
	InitialBackoff time.Duration // delay before the first retry (default: 100ms)
	MaxBackoff     time.Duration // cap on the retry delay (default: 5s)
	// DeliveryDeadline bounds one event's attempts and backoff together (default: 30s).
	DeliveryDeadline time.Duration
}

// LoadConfigFromEnv loads dispatcher configuration from environment variables.
func LoadConfigFromEnv() MemoryConfig {
	cfg := MemoryConfig{
		BufferSize:       config.GetIntEnv("DISPATCHER_BUFFER_SIZE", defaultBufferSize),
		Workers:          config.GetIntEnv("DISPATCHER_WORKERS", defaultWorkers),
		HTTPTimeout:      config.GetDurationEnv("DISPATCHER_HTTP_TIMEOUT", defaultHTTPTimeout),
		MaxRetries:       config.GetIntEnv("DISPATCHER_MAX_RETRIES", defaultMaxRetries),
		InitialBackoff:   config.GetDurationEnv("DISPATCHER_INITIAL_BACKOFF", defaultInitialBackoff),
		MaxBackoff:       config.GetDurationEnv("DISPATCHER_MAX_BACKOFF", defaultMaxBackoff),
		DeliveryDeadline: config.GetDurationEnv("DISPATCHER_DELIVERY_DEADLINE", defaultDeliveryWindow),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.DeliveryDeadline <= 0 {
		c.DeliveryDeadline = defaultDeliveryWindow
	}
	return c
}
