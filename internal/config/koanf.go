// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/satchel/config.yaml",
	"/etc/satchel/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default values.
const (
	DefaultAppID             = "Satchel School Sync"
	DefaultSyncInterval      = 15 * time.Minute
	DefaultTaskLookaheadDays = 7
	DefaultCalendarDays      = 30
)

// defaultConfig returns the built-in defaults, applied before file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			AppID:           DefaultAppID,
			GatewayURL:      "https://appgateway.fireflysolutions.co.uk/appgateway/school/",
			Timeout:         30 * time.Second,
			MaxRetries:      3,
			RetryBaseDelay:  time.Second,
			RateLimitPerSec: 5,
			RateBurst:       5,
			BreakerEnabled:  true,
		},
		Sync: SyncConfig{
			Interval:          DefaultSyncInterval,
			TaskLookaheadDays: DefaultTaskLookaheadDays,
			CalendarDays:      DefaultCalendarDays,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8374,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds configuration from defaults, an optional YAML file and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated lists when
// they arrive through environment variables.
var sliceConfigPaths = []string{
	"sync.children_guids",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are skipped so arbitrary environment noise never
// reaches the config.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"school_host":           "platform.host",
		"school_device_id":      "platform.device_id",
		"school_secret":         "platform.secret",
		"school_app_id":         "platform.app_id",
		"school_user_guid":      "platform.user_guid",
		"school_user_role":      "platform.user_role",
		"school_gateway_url":    "platform.gateway_url",
		"platform_timeout":      "platform.timeout",
		"platform_max_retries":  "platform.max_retries",
		"platform_retry_delay":  "platform.retry_base_delay",
		"platform_rate_limit":   "platform.rate_limit_per_sec",
		"platform_rate_burst":   "platform.rate_burst",
		"breaker_enabled":       "platform.breaker_enabled",

		"sync_interval":       "sync.interval",
		"task_lookahead_days": "sync.task_lookahead_days",
		"children_guids":      "sync.children_guids",
		"calendar_days":       "sync.calendar_days",

		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"cors_origins":      "server.cors_origins",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
