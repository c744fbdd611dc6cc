// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

// Package metrics exposes Prometheus instrumentation for the sync
// coordinator, the protocol client's circuit breaker and the HTTP
// surface. Collectors are registered with promauto on the default
// registry and served at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync cycle metrics.

	// SyncCyclesTotal counts completed cycles by result (success/failure).
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_sync_cycles_total",
			Help: "Total sync cycles by result",
		},
		[]string{"result"},
	)

	// SyncCycleDuration observes wall time per cycle.
	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satchel_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// SyncErrorsTotal counts cycle failures by error kind.
	SyncErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_sync_errors_total",
			Help: "Sync cycle failures by error kind",
		},
		[]string{"kind"},
	)

	// SyncLastSuccessTimestamp is the unix time of the last successful
	// cycle.
	SyncLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "satchel_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync cycle",
		},
	)

	// SyncChildrenTracked is the number of children in the last snapshot.
	SyncChildrenTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "satchel_sync_children_tracked",
			Help: "Number of tracked children in the published snapshot",
		},
	)

	// Circuit breaker metrics.

	// BreakerState reports breaker state (0=closed, 1=open, 2=half-open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satchel_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	// BreakerTransitions counts breaker state transitions.
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP metrics.

	// HTTPRequestsTotal counts requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satchel_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satchel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)
)

// RecordCycle records one coordinator cycle outcome.
func RecordCycle(success bool, duration time.Duration, errKind string) {
	result := "success"
	if !success {
		result = "failure"
		if errKind != "" {
			SyncErrorsTotal.WithLabelValues(errKind).Inc()
		}
	}
	SyncCyclesTotal.WithLabelValues(result).Inc()
	SyncCycleDuration.Observe(duration.Seconds())
	if success {
		SyncLastSuccessTimestamp.SetToCurrentTime()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
