// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

// Package sync drives the periodic refresh loop against the school
// platform. The Coordinator fetches identity, tracked children and
// per-child events/tasks through the protocol client, runs raw records
// through the Processor, and publishes the assembled Snapshot with an
// atomic pointer swap. Persistent failures are escalated to an
// IssueSink once per-kind consecutive thresholds are crossed.
package sync
