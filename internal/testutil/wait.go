// Package testutil holds polling helpers for tests that observe asynchronous delivery.
package testutil

import (
	"testing"
	"time"
)

type pollConfig struct {
	timeout  time.Duration
	interval time.Duration
}

// Option adjusts how long and how often a condition is polled.
type Option func(*pollConfig)

// Within sets the polling deadline (default 10s).
func Within(d time.Duration) Option {
	return func(c *pollConfig) { c.timeout = d }
}

// Every sets the polling interval (default 20ms).
func Every(d time.Duration) Option {
	return func(c *pollConfig) { c.interval = d }
}

func newPollConfig(opts []Option) pollConfig {
	c := pollConfig{timeout: 10 * time.Second, interval: 20 * time.Millisecond}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Poll evaluates cond until it holds or the deadline passes. The condition is always
// evaluated at least once.
func Poll(cond func() bool, opts ...Option) bool {
	c := newPollConfig(opts)
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.interval)
	defer tick.Stop()

	for {
		if cond() {
			return true
		}
		select {
		case <-deadline.C:
			return cond()
		case <-tick.C:
		}
	}
}

// Eventually fails the test when cond does not hold before the deadline.
func Eventually(tb testing.TB, what string, cond func() bool, opts ...Option) {
	tb.Helper()
	if !Poll(cond, opts...) {
		tb.Fatalf("timed out waiting for %s", what)
	}
}

// Reach fails the test when load does not report at least target before the deadline.
func Reach(tb testing.TB, what string, load func() int64, target int64, opts ...Option) {
	tb.Helper()
	if !Poll(func() bool { return load() >= target }, opts...) {
		tb.Fatalf("timed out waiting for %s: have %d, want %d", what, load(), target)
	}
}
