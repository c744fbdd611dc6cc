// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

// Package config provides layered configuration for Satchel:
// struct defaults, an optional YAML file and environment variables, in
// ascending precedence, loaded through koanf v2 and validated with
// go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Platform PlatformConfig `koanf:"platform" json:"platform"`
	Sync     SyncConfig     `koanf:"sync" json:"sync"`
	Server   ServerConfig   `koanf:"server" json:"server"`
	Logging  LoggingConfig  `koanf:"logging" json:"logging"`
}

// PlatformConfig is the credential bundle and HTTP tuning for the school
// platform connection. Host, DeviceID and Secret come out of the setup
// flow (school lookup + browser authentication).
type PlatformConfig struct {
	Host            string        `koanf:"host" json:"host" validate:"required,url"`
	DeviceID        string        `koanf:"device_id" json:"device_id" validate:"required"`
	Secret          string        `koanf:"secret" json:"-"`
	AppID           string        `koanf:"app_id" json:"app_id"`
	UserGUID        string        `koanf:"user_guid" json:"user_guid"`
	UserRole        string        `koanf:"user_role" json:"user_role"`
	GatewayURL      string        `koanf:"gateway_url" json:"gateway_url"`
	Timeout         time.Duration `koanf:"timeout" json:"timeout"`
	MaxRetries      int           `koanf:"max_retries" json:"max_retries" validate:"min=1,max=10"`
	RetryBaseDelay  time.Duration `koanf:"retry_base_delay" json:"retry_base_delay"`
	RateLimitPerSec float64       `koanf:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	RateBurst       int           `koanf:"rate_burst" json:"rate_burst"`
	BreakerEnabled  bool          `koanf:"breaker_enabled" json:"breaker_enabled"`
}

// SyncConfig controls the coordinator's schedule and windows.
type SyncConfig struct {
	Interval          time.Duration `koanf:"interval" json:"interval"`
	TaskLookaheadDays int           `koanf:"task_lookahead_days" json:"task_lookahead_days" validate:"min=1,max=30"`
	ChildrenGUIDs     []string      `koanf:"children_guids" json:"children_guids"`
	CalendarDays      int           `koanf:"calendar_days" json:"calendar_days" validate:"min=1,max=90"`
}

// ServerConfig is the read-only HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host"`
	Port            int           `koanf:"port" json:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" json:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" json:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" json:"rate_limit_window"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" json:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller" json:"caller"`
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least 1m, got %s", c.Sync.Interval)
	}
	if c.Platform.Timeout <= 0 {
		return fmt.Errorf("platform.timeout must be positive, got %s", c.Platform.Timeout)
	}
	return nil
}

// Redacted returns a copy safe for diagnostics export: the session
// secret is masked, everything else is kept.
func (c Config) Redacted() Config {
	out := c
	if out.Platform.Secret != "" {
		out.Platform.Secret = "**redacted**"
	}
	return out
}
