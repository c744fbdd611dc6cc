// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Platform.Host = "https://testschool.example.net"
	cfg.Platform.DeviceID = "device-1"
	cfg.Platform.Secret = "secret-1"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Platform.Host = "" },
			wantErr: "invalid configuration",
		},
		{
			name:    "host must be a url",
			mutate:  func(c *Config) { c.Platform.Host = "not a url" },
			wantErr: "invalid configuration",
		},
		{
			name:    "lookahead above bound",
			mutate:  func(c *Config) { c.Sync.TaskLookaheadDays = 31 },
			wantErr: "invalid configuration",
		},
		{
			name:    "lookahead below bound",
			mutate:  func(c *Config) { c.Sync.TaskLookaheadDays = 0 },
			wantErr: "invalid configuration",
		},
		{
			name:    "interval below one minute",
			mutate:  func(c *Config) { c.Sync.Interval = 30 * time.Second },
			wantErr: "sync.interval",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(c *Config) { c.Platform.Timeout = 0 },
			wantErr: "platform.timeout",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid configuration",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if cfg.Sync.Interval != 15*time.Minute {
		t.Errorf("interval = %s, want 15m", cfg.Sync.Interval)
	}
	if cfg.Sync.TaskLookaheadDays != 7 {
		t.Errorf("lookahead = %d, want 7", cfg.Sync.TaskLookaheadDays)
	}
	if cfg.Platform.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.Platform.MaxRetries)
	}
	if cfg.Platform.RetryBaseDelay != time.Second {
		t.Errorf("retry base delay = %s, want 1s", cfg.Platform.RetryBaseDelay)
	}
}

func TestRedacted(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	red := cfg.Redacted()

	if red.Platform.Secret == "secret-1" {
		t.Error("secret not masked")
	}
	if cfg.Platform.Secret != "secret-1" {
		t.Error("redaction must not mutate the original")
	}
	if red.Platform.Host != cfg.Platform.Host {
		t.Error("non-secret fields must survive redaction")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{"SCHOOL_HOST", "platform.host"},
		{"school_secret", "platform.secret"},
		{"SYNC_INTERVAL", "sync.interval"},
		{"TASK_LOOKAHEAD_DAYS", "sync.task_lookahead_days"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"RANDOM_NOISE", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
