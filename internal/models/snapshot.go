// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package models

import "time"

// Event is a normalized timetable entry. Start <= End is an invariant
// enforced at the normalization boundary; records that violate it are
// dropped, never published.
type Event struct {
	GUID        string     `json:"guid,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Subject     string     `json:"subject"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	GroupLabel  string     `json:"group_label,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
}

// Attendee is a person attached to an event.
type Attendee struct {
	Name string `json:"name"`
	GUID string `json:"guid,omitempty"`
	Role string `json:"role,omitempty"`
}

// Task is a normalized homework / assignment record. A nil DueDate or
// SetDate means the source date was absent or unparsable; the task still
// appears in the "all" bucket.
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Subject          string     `json:"subject"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	SetDate          *time.Time `json:"set_date,omitempty"`
	CompletionStatus string     `json:"completion_status"`
	Setter           string     `json:"setter"`
}

// TaskBuckets holds four views over the same task set, computed relative
// to a reference instant and a lookahead horizon. Membership is
// recomputed every cycle.
type TaskBuckets struct {
	All      []Task `json:"all"`
	DueToday []Task `json:"due_today"`
	Upcoming []Task `json:"upcoming"`
	Overdue  []Task `json:"overdue"`
}

// EventWindows holds the two event views fetched per child.
type EventWindows struct {
	Today []Event `json:"today"`
	Week  []Event `json:"week"`
}

// ChildSnapshot is the per-child slice of a Snapshot, rebuilt in full
// every cycle.
type ChildSnapshot struct {
	Events      EventWindows `json:"events"`
	Tasks       TaskBuckets  `json:"tasks"`
	DisplayName string       `json:"display_name"`
}

// Snapshot is the complete, atomically-published result of one sync
// cycle. Consumers must treat it as immutable; the coordinator replaces
// it wholesale and never patches it in place.
type Snapshot struct {
	UserIdentity    UserIdentity             `json:"user_identity"`
	TrackedChildren []string                 `json:"tracked_children"`
	Children        map[string]ChildSnapshot `json:"children"`
	FetchedAt       time.Time                `json:"fetched_at"`
}

// TaskCounts summarizes a child's bucket sizes for consumers that only
// need counters.
type TaskCounts struct {
	All      int `json:"all"`
	DueToday int `json:"due_today"`
	Upcoming int `json:"upcoming"`
	Overdue  int `json:"overdue"`
}

// Counts returns the bucket cardinalities for b.
func (b TaskBuckets) Counts() TaskCounts {
	return TaskCounts{
		All:      len(b.All),
		DueToday: len(b.DueToday),
		Upcoming: len(b.Upcoming),
		Overdue:  len(b.Overdue),
	}
}

// FailureStats tracks cycle outcomes for the coordinator's lifetime.
// Consecutive counters reset on any successful cycle; cumulative counts
// persist until the coordinator is rebuilt.
type FailureStats struct {
	TotalCycles       int            `json:"total_cycles"`
	SuccessCycles     int            `json:"success_cycles"`
	FailCycles        int            `json:"fail_cycles"`
	LastSuccessAt     *time.Time     `json:"last_success_at,omitempty"`
	LastFailureAt     *time.Time     `json:"last_failure_at,omitempty"`
	CountsByKind      map[string]int `json:"counts_by_kind"`
	ConsecutiveByKind map[string]int `json:"consecutive_by_kind"`
}

// Clone returns a deep copy safe to hand to consumers.
func (s FailureStats) Clone() FailureStats {
	out := s
	out.CountsByKind = make(map[string]int, len(s.CountsByKind))
	for k, v := range s.CountsByKind {
		out.CountsByKind[k] = v
	}
	out.ConsecutiveByKind = make(map[string]int, len(s.ConsecutiveByKind))
	for k, v := range s.ConsecutiveByKind {
		out.ConsecutiveByKind[k] = v
	}
	return out
}
