// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package models

import "fmt"

// SchoolInfo is the result of resolving a school code against the
// platform's app gateway directory.
type SchoolInfo struct {
	Enabled  bool   `json:"enabled"`
	Name     string `json:"name"`
	ID       string `json:"id"`
	Host     string `json:"host"`
	SSL      bool   `json:"ssl"`
	URL      string `json:"url"`
	TokenURL string `json:"token_url"`
	DeviceID string `json:"device_id"`
}

// Version is the platform API version triple.
type Version struct {
	Major     int `json:"major"`
	Minor     int `json:"minor"`
	Increment int `json:"increment"`
}

// String renders the version as "major.minor.increment".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Increment)
}

// UserIdentity describes the signed-in account. Fetched once per
// coordinator lifetime; a new coordinator is built on re-authentication.
type UserIdentity struct {
	GUID     string `json:"guid"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// ChildProfile is one tracked child. Student accounts track themselves
// as their sole child.
type ChildProfile struct {
	GUID     string `json:"guid"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name"`
	FullName string `json:"fullname,omitempty"`
}

// Group is a class or teaching group the user participates in.
type Group struct {
	GUID           string `json:"guid"`
	SortKey        string `json:"sort_key"`
	Name           string `json:"name"`
	PersonalColour string `json:"personal_colour"`
}

// AuthResult is the outcome of completing browser authentication: the
// rotated session secret plus the user attributes embedded in the token
// document. User is nil when the token document carried an empty user
// element.
type AuthResult struct {
	Secret string        `json:"-"`
	User   *UserIdentity `json:"user,omitempty"`
}
