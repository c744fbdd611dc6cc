// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
Package models defines data structures for the Satchel application.

This package contains every record that crosses a package boundary: the
normalized domain records published in a Snapshot, the raw wire-shaped
records the protocol client decodes from the remote school platform, and
the observability structures the coordinator exposes.

Key Components:

  - Snapshot / ChildSnapshot: the complete result of one sync cycle
  - Event / Task / TaskBuckets: normalized per-child records
  - UserIdentity / ChildProfile: account identity records
  - SchoolInfo / Version: school directory and platform version lookups
  - RawEvent / RawTask: wire-shaped records prior to normalization
  - FailureStats: rolling cycle statistics maintained by the coordinator

Raw records are only handled by internal/client and internal/sync's
normalization boundary; everything downstream of normalization works with
the typed records and never re-inspects wire shapes.
*/
package models
