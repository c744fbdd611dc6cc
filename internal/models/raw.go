// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package models

import "github.com/goccy/go-json"

// RawEvent is a timetable record as returned by the protocol client,
// after the REST field union (startUtc/startZoned) has been collapsed to
// a single start/end pair. Timestamps are unparsed strings; a missing
// source field is an empty string, never an error.
type RawEvent struct {
	GUID        string        `json:"guid"`
	Start       string        `json:"start"`
	End         string        `json:"end"`
	Subject     string        `json:"subject"`
	Location    string        `json:"location"`
	Description string        `json:"description"`
	GroupLabel  string        `json:"group_label,omitempty"`
	Attendees   []RawAttendee `json:"attendees"`
}

// RawAttendee mirrors the GraphQL attendee shape the REST response is
// converted into.
type RawAttendee struct {
	Role      string `json:"role"`
	Principal struct {
		GUID string `json:"guid"`
		Name string `json:"name"`
	} `json:"principal"`
}

// RawTask is one item from the task listing endpoint. Subject and Setter
// are sometimes bare strings and sometimes nested objects on the wire;
// they are kept as raw JSON here and resolved once during normalization.
type RawTask struct {
	GUID             string          `json:"guid"`
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	DueDate          string          `json:"dueDate"`
	SetDate          string          `json:"setDate"`
	CompletionStatus string          `json:"completionStatus"`
	Subject          json.RawMessage `json:"subject"`
	Setter           json.RawMessage `json:"setter"`
}

// TaskFilters are the pagination and filter fields posted to the task
// listing endpoint.
type TaskFilters struct {
	StudentGUID      string
	Page             int
	PageSize         int
	CompletionStatus string
	OwnerType        string
	ArchiveStatus    string
	SortingCriteria  []TaskSort
}

// TaskSort is one sorting criterion for the task listing endpoint.
type TaskSort struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}
