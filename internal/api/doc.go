// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

// Package api serves the read-only HTTP surface over the published
// snapshot: snapshot and per-child reads, task counters, failure
// statistics, active issues, manual refresh, school lookup for setup,
// diagnostics export and Prometheus metrics. Routing uses Chi.
package api
