// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

// Package main is the entry point for the Satchel server.
//
// Satchel polls a school management platform for timetable events and
// homework tasks, normalizes the responses and serves the result as an
// atomically published snapshot over a small REST API.
//
// # Startup sequence
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     environment variables)
//  2. Logging: zerolog, JSON by default
//  3. Protocol client: credential bundle from configuration, optional
//     circuit breaker
//  4. Credential check: verify the session secret and fetch the API
//     version before the poll loop starts
//  5. Supervisor tree: sync coordinator (messaging layer) and HTTP
//     server (api layer) under Suture supervision
//
// # Configuration
//
// The credential bundle comes out of the setup flow: resolve the
// school code (POST /api/v1/setup/school), open the returned auth URL
// in a browser and store the token blob's secret.
//
//	export SCHOOL_HOST=https://myschool.fireflycloud.net
//	export SCHOOL_DEVICE_ID=...
//	export SCHOOL_SECRET=...
//	./satchel
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful stop: the current cycle is
// cancelled at its next suspension point and the HTTP server drains
// in-flight requests with a 10s timeout.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/satchelhq/satchel/internal/api"
	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/logging"
	"github.com/satchelhq/satchel/internal/supervisor"
	"github.com/satchelhq/satchel/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("host", cfg.Platform.Host).
		Dur("interval", cfg.Sync.Interval).
		Int("children", len(cfg.Sync.ChildrenGUIDs)).
		Msg("Starting Satchel")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	platformClient := client.New(&cfg.Platform)
	var protocol client.Interface = platformClient
	if cfg.Platform.BreakerEnabled {
		protocol = client.NewBreakerClient(platformClient)
		logging.Info().Msg("Circuit breaker enabled for platform client")
	}

	checkCredentials(ctx, platformClient)

	resolver := client.NewResolver(cfg.Platform.GatewayURL, cfg.Platform.AppID, cfg.Platform.Timeout)
	registry := sync.NewRegistry()
	coordinator := sync.NewCoordinator(protocol, &cfg.Sync, sync.SystemClock(), registry)

	handler := api.NewHandler(coordinator, resolver, platformClient, registry, cfg)
	server := api.NewServer(api.NewRouter(handler, &cfg.Server), &cfg.Server)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(coordinator)
	tree.AddAPIService(server)

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree terminated")
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Satchel stopped")
}

// checkCredentials verifies the stored secret before the poll loop
// starts. A rejected secret is fatal with a re-auth hint; a platform
// that is merely unreachable is left to the supervised retry loop.
func checkCredentials(ctx context.Context, c *client.Client) {
	valid, err := c.VerifyCredentials(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Could not verify credentials, continuing (sync will retry)")
		return
	}
	if !valid {
		logging.Fatal().
			Str("auth_url", c.BuildAuthURL()).
			Msg("Stored credentials rejected - re-authenticate via the auth URL and update SCHOOL_SECRET")
	}

	version, err := c.FetchAPIVersion(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Could not fetch API version, continuing")
		return
	}
	logging.Info().Str("api_version", version.String()).Msg("Credentials verified")
}
