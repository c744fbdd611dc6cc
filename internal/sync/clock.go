// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package sync

import "time"

// Clock supplies the reference instant for date bucketing and cycle
// timestamps. Injected so tests can pin "now" instead of sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock always reports the same instant. Test use only.
type FixedClock struct {
	T time.Time
}

// Now returns the pinned instant.
func (f FixedClock) Now() time.Time { return f.T }
