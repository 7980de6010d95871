// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"time"
)

// ControllerConfig holds configuration for the job controller.
type ControllerConfig struct {
	JobID             string
	JobAdFile         string // YAML or JSON job record
	Port              string
	MetricsPort       string
	APIKey            string
	QueueDB           string // SQLite path for the job queue
	UserLog           string // JSON-lines job event log
	EventCallbackURL  string // forward every logged event here (empty to skip)
	EventCallbackKey  string // HMAC key for forwarded events
	ShutdownDrainWait time.Duration
	ParallelLeader    bool // route job record calls to a separate leader slot
}

// LoadControllerConfig loads controller configuration from environment variables.
func LoadControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		JobID:             GetEnv("JOB_ID", ""),
		JobAdFile:         GetEnv("JOB_AD_FILE", ""),
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		QueueDB:           GetEnv("QUEUE_DB", "job_queue.db"),
		UserLog:           GetEnv("USER_LOG", "job.log.jsonl"),
		EventCallbackURL:  GetEnv("EVENT_CALLBACK_URL", ""),
		EventCallbackKey:  GetSecretFile(GetEnv("EVENT_CALLBACK_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ParallelLeader:    GetBoolEnv("PARALLEL_LEADER", false),
	}
}

// Validate reports settings the controller cannot start without.
func (c *ControllerConfig) Validate() error {
	var errs []error
	if c.JobID == "" {
		errs = append(errs, errors.New("JOB_ID is required"))
	}
	if c.JobAdFile == "" {
		errs = append(errs, errors.New("JOB_AD_FILE is required"))
	}
	return errors.Join(errs...)
}
