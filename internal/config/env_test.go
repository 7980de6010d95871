package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvLookups(t *testing.T) {
	tests := []struct {
		name  string
		value string // "" leaves the variable unset
		get   func(key string) any
		want  any
	}{
		{"string unset", "", func(k string) any { return GetEnv(k, "job_queue.db") }, "job_queue.db"},
		{"string set", "/var/lib/queue.db", func(k string) any { return GetEnv(k, "job_queue.db") }, "/var/lib/queue.db"},
		{"int set", "16", func(k string) any { return GetIntEnv(k, 4) }, 16},
		{"int malformed", "four", func(k string) any { return GetIntEnv(k, 4) }, 4},
		{"duration set", "250ms", func(k string) any { return GetDurationEnv(k, 5*time.Second) }, 250 * time.Millisecond},
		{"duration malformed", "soon", func(k string) any { return GetDurationEnv(k, 5*time.Second) }, 5 * time.Second},
		{"bool set", "1", func(k string) any { return GetBoolEnv(k, false) }, true},
		{"bool malformed", "maybe", func(k string) any { return GetBoolEnv(k, false) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "JOBCONTROLLER_TEST_VALUE"
			t.Setenv(key, tt.value)
			if tt.value == "" {
				os.Unsetenv(key)
			}
			if got := tt.get(key); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSecretFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "callback.key")
	if err := os.WriteFile(path, []byte("  hmac-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"no path", "", ""},
		{"missing file", filepath.Join(dir, "absent.key"), ""},
		{"trimmed", path, "hmac-key"},
	}
	for _, tt := range tests {
		if got := GetSecretFile(tt.path); got != tt.want {
			t.Errorf("%s: GetSecretFile = %q, want %q", tt.name, got, tt.want)
		}
	}
}
