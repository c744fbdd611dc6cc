// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
processor.go - Raw Record Normalization

Pure transformation functions between the wire shapes the protocol
client returns and the typed records the snapshot publishes. No I/O:
everything is computed from the inputs and the supplied reference
instant, so the same inputs always yield the same buckets.
*/

package sync

import (
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/satchelhq/satchel/internal/models"
)

// timestampLayouts are tried in order when parsing platform timestamps.
// The platform is inconsistent: zoned ISO-8601, naive ISO-8601 and bare
// dates all occur in the wild. Naive values are treated as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a platform timestamp string. A trailing "Z" is
// UTC shorthand; values without zone information are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeEvent converts a raw timetable record into a typed Event.
// Records whose start or end fails to parse, or whose end precedes
// start, are dropped (ok=false); every other field takes a permissive
// default.
func NormalizeEvent(raw models.RawEvent) (models.Event, bool) {
	start, ok := ParseTimestamp(raw.Start)
	if !ok {
		return models.Event{}, false
	}
	end, ok := ParseTimestamp(raw.End)
	if !ok {
		return models.Event{}, false
	}
	if end.Before(start) {
		return models.Event{}, false
	}

	ev := models.Event{
		GUID:        raw.GUID,
		Start:       start,
		End:         end,
		Subject:     raw.Subject,
		Location:    raw.Location,
		Description: raw.Description,
		GroupLabel:  raw.GroupLabel,
	}
	for _, a := range raw.Attendees {
		ev.Attendees = append(ev.Attendees, models.Attendee{
			Name: a.Principal.Name,
			GUID: a.Principal.GUID,
			Role: a.Role,
		})
	}
	return ev, true
}

// NormalizeEvents normalizes a batch of raw events, dropping unusable
// records and sorting the rest by start time.
func NormalizeEvents(raws []models.RawEvent) []models.Event {
	events := make([]models.Event, 0, len(raws))
	for _, raw := range raws {
		if ev, ok := NormalizeEvent(raw); ok {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// unionName resolves the platform's string-or-object union: some task
// fields arrive as a bare string, some as {"name": "..."}.
func unionName(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		if plain != "" {
			return plain
		}
		return fallback
	}

	var nested struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Name != "" {
		return nested.Name
	}
	return fallback
}

// NormalizeTask converts a raw task listing item into a typed Task.
// Tasks are never dropped: an unparsable due or set date leaves the
// corresponding field nil, a missing id gets a generated placeholder,
// and the subject/setter unions fall back to sentinel names.
func NormalizeTask(raw models.RawTask) models.Task {
	id := raw.GUID
	if id == "" {
		id = raw.ID
	}
	if id == "" {
		id = "task-" + uuid.NewString()
	}

	task := models.Task{
		ID:               id,
		Title:            raw.Title,
		Description:      raw.Description,
		Subject:          unionName(raw.Subject, "Unknown Subject"),
		Setter:           unionName(raw.Setter, "Unknown"),
		CompletionStatus: raw.CompletionStatus,
	}
	if due, ok := ParseTimestamp(raw.DueDate); ok {
		task.DueDate = &due
	}
	if set, ok := ParseTimestamp(raw.SetDate); ok {
		task.SetDate = &set
	}
	return task
}

// NormalizeTasks normalizes a batch of raw tasks.
func NormalizeTasks(raws []models.RawTask) []models.Task {
	tasks := make([]models.Task, 0, len(raws))
	for _, raw := range raws {
		tasks = append(tasks, NormalizeTask(raw))
	}
	return tasks
}

// taskComplete reports whether a completion status counts as done for
// overdue purposes. The platform emits both "Completed" and "Done"
// depending on the endpoint.
func taskComplete(status string) bool {
	return strings.EqualFold(status, "completed") || strings.EqualFold(status, "done")
}

// BucketTasks computes the four task views relative to now. Every task
// stays in All; the date buckets only admit tasks with a parsed due
// date. dueToday covers [midnight today, midnight tomorrow), upcoming
// covers [now, midnight today + lookaheadDays), overdue is anything
// strictly before now that is not complete. All boundaries are UTC.
func BucketTasks(tasks []models.Task, now time.Time, lookaheadDays int) models.TaskBuckets {
	now = now.UTC()
	y, m, d := now.Date()
	todayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	todayEnd := todayStart.Add(24 * time.Hour)
	horizon := todayStart.Add(time.Duration(lookaheadDays) * 24 * time.Hour)

	buckets := models.TaskBuckets{
		All:      make([]models.Task, len(tasks)),
		DueToday: []models.Task{},
		Upcoming: []models.Task{},
		Overdue:  []models.Task{},
	}
	copy(buckets.All, tasks)

	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		due := task.DueDate.UTC()

		if !due.Before(todayStart) && due.Before(todayEnd) {
			buckets.DueToday = append(buckets.DueToday, task)
		}
		if !due.Before(now) && due.Before(horizon) {
			buckets.Upcoming = append(buckets.Upcoming, task)
		}
		if due.Before(now) && !taskComplete(task.CompletionStatus) {
			buckets.Overdue = append(buckets.Overdue, task)
		}
	}
	return buckets
}

// ResolveDisplayName resolves a human-readable name for a tracked
// child. The chain is: the signed-in user's own name/full name/username
// when the guid is the user's own, then the matching child profile's
// name or full name, then the raw guid.
func ResolveDisplayName(childGUID string, identity models.UserIdentity, children []models.ChildProfile) string {
	if childGUID == identity.GUID {
		switch {
		case identity.Name != "":
			return identity.Name
		case identity.FullName != "":
			return identity.FullName
		case identity.Username != "":
			return identity.Username
		}
	}
	for _, child := range children {
		if child.GUID != childGUID {
			continue
		}
		if child.Name != "" {
			return child.Name
		}
		if child.FullName != "" {
			return child.FullName
		}
	}
	return childGUID
}
