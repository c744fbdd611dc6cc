// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
coordinator.go - Sync Coordinator

The Coordinator owns the refresh loop: Idle -> Fetching -> Succeeded or
Failed, one cycle at a time, never overlapping. A cycle fetches events
and tasks for every tracked child sequentially so a failure is
attributable to a single call, and publishes either a complete snapshot
or nothing.

Failure handling is kind-aware: per-kind consecutive counters feed an
IssueSink once the kind's threshold is crossed, and any successful
cycle dismisses everything previously raised.
*/

package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/logging"
	"github.com/satchelhq/satchel/internal/metrics"
	"github.com/satchelhq/satchel/internal/models"
)

// Cycle states.
const (
	StateIdle      = "idle"
	StateFetching  = "fetching"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// escalation maps an error kind to its issue-sink policy.
type escalation struct {
	issueID   string
	threshold int
	severity  string
}

// escalationFor returns the policy for a classified failure kind.
// Auth-class failures escalate immediately because the secret is known
// bad; rate limiting escalates immediately with an interval hint;
// transient connection trouble gets three chances.
func escalationFor(kind client.Kind) escalation {
	switch kind {
	case client.KindAuthentication, client.KindTokenExpired:
		return escalation{issueID: "authentication_error", threshold: 1, severity: SeverityCritical}
	case client.KindConnection:
		return escalation{issueID: "connection_error", threshold: 3, severity: SeverityWarning}
	case client.KindRateLimit:
		return escalation{issueID: "rate_limit_error", threshold: 1, severity: SeverityWarning}
	case client.KindData, client.KindSchoolNotFound:
		return escalation{issueID: "data_error", threshold: 2, severity: SeverityWarning}
	default:
		return escalation{issueID: "unexpected_error", threshold: 2, severity: SeverityCritical}
	}
}

// Coordinator schedules refresh cycles against the school platform and
// publishes their results.
//
// Thread Safety: safe for concurrent use. The snapshot is an atomic
// pointer; stats and state are mutex-guarded; the cycle itself runs
// only on the Serve goroutine.
type Coordinator struct {
	client client.Interface
	cfg    *config.SyncConfig
	clock  Clock
	sink   IssueSink

	snapshot atomic.Pointer[models.Snapshot]
	trigger  chan struct{}

	mu       stdsync.RWMutex
	stats    models.FailureStats
	state    string
	children []models.ChildProfile
}

// NewCoordinator wires a coordinator. A nil clock defaults to the wall
// clock and a nil sink to the logging sink.
func NewCoordinator(c client.Interface, cfg *config.SyncConfig, clock Clock, sink IssueSink) *Coordinator {
	if clock == nil {
		clock = SystemClock()
	}
	if sink == nil {
		sink = LogSink{}
	}
	return &Coordinator{
		client:  c,
		cfg:     cfg,
		clock:   clock,
		sink:    sink,
		trigger: make(chan struct{}, 1),
		state:   StateIdle,
		stats: models.FailureStats{
			CountsByKind:      make(map[string]int),
			ConsecutiveByKind: make(map[string]int),
		},
	}
}

// String names the service in supervisor logs.
func (c *Coordinator) String() string { return "sync-coordinator" }

// Serve runs the refresh loop until ctx is cancelled: one immediate
// cycle, then one per interval tick or manual trigger.
func (c *Coordinator) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", c.cfg.Interval).
		Int("lookahead_days", c.cfg.TaskLookaheadDays).
		Msg("Starting sync coordinator")

	c.RunCycle(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync coordinator stopped")
			return ctx.Err()
		case <-ticker.C:
			c.RunCycle(ctx)
		case <-c.trigger:
			c.RunCycle(ctx)
		}
	}
}

// Refresh requests an on-demand cycle. Non-blocking; a refresh already
// pending absorbs the request.
func (c *Coordinator) Refresh() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Snapshot returns the most recently published snapshot, or false when
// no cycle has succeeded yet. Callers must not mutate the result.
func (c *Coordinator) Snapshot() (*models.Snapshot, bool) {
	snap := c.snapshot.Load()
	return snap, snap != nil
}

// Stats returns a copy of the failure statistics.
func (c *Coordinator) Stats() models.FailureStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Clone()
}

// State returns the current cycle state.
func (c *Coordinator) State() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastCycleSucceeded reports whether the most recent completed cycle
// published a snapshot.
func (c *Coordinator) LastCycleSucceeded() bool {
	return c.State() == StateSucceeded
}

// RunCycle performs one complete refresh cycle and records its outcome.
func (c *Coordinator) RunCycle(ctx context.Context) {
	c.setState(StateFetching)
	started := c.clock.Now()

	snap, err := c.fetch(ctx)
	elapsed := time.Since(started)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-cycle is not a platform failure.
			c.setState(StateIdle)
			return
		}
		c.recordFailure(err, elapsed)
		return
	}

	c.snapshot.Store(snap)
	c.recordSuccess(elapsed, snap)
}

// fetch executes the cycle body and assembles a complete snapshot. Any
// error aborts the whole cycle; nothing partial escapes.
func (c *Coordinator) fetch(ctx context.Context) (*models.Snapshot, error) {
	identity, err := c.client.FetchUserIdentity(ctx)
	if err != nil {
		return nil, err
	}
	children := c.ensureChildren(ctx)

	now := c.clock.Now().UTC()
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	todayEnd := todayStart.Add(24 * time.Hour)
	calendarEnd := todayStart.Add(time.Duration(c.cfg.CalendarDays) * 24 * time.Hour)

	targets := c.cfg.ChildrenGUIDs
	if len(targets) == 0 {
		targets = []string{identity.GUID}
	}

	snap := &models.Snapshot{
		UserIdentity:    identity,
		TrackedChildren: targets,
		Children:        make(map[string]models.ChildSnapshot, len(targets)),
		FetchedAt:       now,
	}

	for _, guid := range targets {
		child, err := c.fetchChild(ctx, guid, identity, children, now, todayStart, todayEnd, calendarEnd)
		if err != nil {
			return nil, err
		}
		snap.Children[guid] = child
	}
	return snap, nil
}

// fetchChild gathers one child's events and tasks sequentially.
func (c *Coordinator) fetchChild(
	ctx context.Context,
	guid string,
	identity models.UserIdentity,
	children []models.ChildProfile,
	now, todayStart, todayEnd, calendarEnd time.Time,
) (models.ChildSnapshot, error) {
	rawToday, err := c.client.FetchEvents(ctx, todayStart, todayEnd, guid)
	if err != nil {
		return models.ChildSnapshot{}, fmt.Errorf("events today for %s: %w", guid, err)
	}
	rawCalendar, err := c.client.FetchEvents(ctx, todayStart, calendarEnd, guid)
	if err != nil {
		return models.ChildSnapshot{}, fmt.Errorf("calendar events for %s: %w", guid, err)
	}
	rawTasks, err := c.client.FetchTasks(ctx, models.TaskFilters{StudentGUID: guid})
	if err != nil {
		return models.ChildSnapshot{}, fmt.Errorf("tasks for %s: %w", guid, err)
	}

	tasks := NormalizeTasks(rawTasks)
	return models.ChildSnapshot{
		Events: models.EventWindows{
			Today: NormalizeEvents(rawToday),
			Week:  NormalizeEvents(rawCalendar),
		},
		Tasks:       BucketTasks(tasks, now, c.cfg.TaskLookaheadDays),
		DisplayName: ResolveDisplayName(guid, identity, children),
	}, nil
}

// ensureChildren fetches the child profile list once when explicit
// guids are tracked. Failure is non-fatal: names fall back to raw
// guids instead of aborting the cycle.
func (c *Coordinator) ensureChildren(ctx context.Context) []models.ChildProfile {
	c.mu.RLock()
	cached := c.children
	c.mu.RUnlock()
	if cached != nil || len(c.cfg.ChildrenGUIDs) == 0 {
		return cached
	}

	children, err := c.client.FetchChildren(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to fetch children info, display names fall back to guids")
		return nil
	}

	c.mu.Lock()
	c.children = children
	c.mu.Unlock()
	return children
}

// recordSuccess updates stats for a published snapshot, resets every
// consecutive counter and dismisses all active issues.
func (c *Coordinator) recordSuccess(elapsed time.Duration, snap *models.Snapshot) {
	now := c.clock.Now()

	c.mu.Lock()
	c.stats.TotalCycles++
	c.stats.SuccessCycles++
	c.stats.LastSuccessAt = &now
	c.stats.ConsecutiveByKind = make(map[string]int)
	c.state = StateSucceeded
	c.mu.Unlock()

	c.sink.DismissAll()
	metrics.RecordCycle(true, elapsed, "")
	metrics.SyncChildrenTracked.Set(float64(len(snap.Children)))

	logging.Info().
		Int("children", len(snap.Children)).
		Dur("elapsed", elapsed).
		Msg("Sync cycle succeeded")
}

// recordFailure classifies the error, updates stats and escalates to
// the issue sink once the kind's consecutive threshold is reached.
func (c *Coordinator) recordFailure(err error, elapsed time.Duration) {
	kind := client.ClassifyKind(err)
	kindName := kind.String()
	now := c.clock.Now()

	c.mu.Lock()
	c.stats.TotalCycles++
	c.stats.FailCycles++
	c.stats.LastFailureAt = &now
	c.stats.CountsByKind[kindName]++
	c.stats.ConsecutiveByKind[kindName]++
	consecutive := c.stats.ConsecutiveByKind[kindName]
	c.state = StateFailed
	c.mu.Unlock()

	metrics.RecordCycle(false, elapsed, kindName)

	logging.Err(err).
		Str("kind", kindName).
		Int("consecutive", consecutive).
		Msg("Sync cycle failed")

	// Raise exactly once, when the counter crosses the threshold. The
	// issue stays active until a successful cycle dismisses it.
	policy := escalationFor(kind)
	if consecutive != policy.threshold {
		return
	}
	c.sink.Raise(Issue{
		ID:       policy.issueID,
		Severity: policy.severity,
		Kind:     kindName,
		Detail:   err.Error(),
		Hint:     c.escalationHint(kind),
		RaisedAt: now,
	})
}

// escalationHint suggests an operator action for kinds with a known
// remedy.
func (c *Coordinator) escalationHint(kind client.Kind) string {
	switch kind {
	case client.KindAuthentication, client.KindTokenExpired:
		return "re-authenticate with the school platform to obtain a fresh session secret"
	case client.KindRateLimit:
		suggested := int(c.cfg.Interval.Minutes()) + 5
		return fmt.Sprintf("increase the sync interval to at least %d minutes", suggested)
	default:
		return ""
	}
}

func (c *Coordinator) setState(state string) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
