// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package sync

import (
	stdsync "sync"
	"time"

	"github.com/satchelhq/satchel/internal/logging"
)

// Issue severity levels.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Issue is one escalated persistent failure. The ID is stable per
// failure kind so repeated escalations update rather than duplicate.
type Issue struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail"`
	Hint     string    `json:"hint,omitempty"`
	RaisedAt time.Time `json:"raised_at"`
}

// IssueSink receives escalations from the coordinator. Raise may be
// called repeatedly with the same issue id; implementations should
// treat that as an update. DismissAll is called after every successful
// cycle.
type IssueSink interface {
	Raise(issue Issue)
	Dismiss(id string)
	DismissAll()
}

// LogSink writes escalations to the log and nothing else. It is the
// default sink for library use where no registry is wired.
type LogSink struct{}

// Raise logs the issue at a level matching its severity.
func (LogSink) Raise(issue Issue) {
	evt := logging.Warn()
	if issue.Severity == SeverityCritical {
		evt = logging.Error()
	}
	evt.Str("issue_id", issue.ID).
		Str("kind", issue.Kind).
		Str("hint", issue.Hint).
		Msg(issue.Detail)
}

// Dismiss logs the resolution.
func (LogSink) Dismiss(id string) {
	logging.Info().Str("issue_id", id).Msg("Issue resolved")
}

// DismissAll is a no-op for the log sink; there is nothing to clear.
func (LogSink) DismissAll() {}

// Registry is an in-memory IssueSink that keeps the active issue set
// for the HTTP surface. Safe for concurrent use.
type Registry struct {
	mu     stdsync.RWMutex
	active map[string]Issue
}

// NewRegistry creates an empty issue registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]Issue)}
}

// Raise records or updates an issue, preserving the original RaisedAt
// when the same id is already active.
func (r *Registry) Raise(issue Issue) {
	r.mu.Lock()
	if existing, ok := r.active[issue.ID]; ok {
		issue.RaisedAt = existing.RaisedAt
	}
	r.active[issue.ID] = issue
	r.mu.Unlock()

	LogSink{}.Raise(issue)
}

// Dismiss removes one issue by id.
func (r *Registry) Dismiss(id string) {
	r.mu.Lock()
	_, ok := r.active[id]
	delete(r.active, id)
	r.mu.Unlock()

	if ok {
		LogSink{}.Dismiss(id)
	}
}

// DismissAll clears every active issue.
func (r *Registry) DismissAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	r.active = make(map[string]Issue)
	r.mu.Unlock()

	for _, id := range ids {
		LogSink{}.Dismiss(id)
	}
}

// Active returns a copy of the active issue set.
func (r *Registry) Active() []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issues := make([]Issue, 0, len(r.active))
	for _, issue := range r.active {
		issues = append(issues, issue)
	}
	return issues
}
