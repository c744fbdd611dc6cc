// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
errors.go - Tagged protocol error type

Every failure the protocol client surfaces carries an explicit Kind so the
coordinator can match on it exhaustively instead of walking a type
hierarchy. Errors wrap their cause and work with errors.Is / errors.As.
*/

package client

import (
	"errors"
	"fmt"
)

// Kind classifies a protocol failure.
type Kind int

const (
	// KindUnexpected is any failure not covered by a more specific kind.
	KindUnexpected Kind = iota

	// KindSchoolNotFound means the directory lookup returned no school,
	// or a disabled one. Not retried; surfaced to the setup flow.
	KindSchoolNotFound

	// KindConnection covers transport failures, timeouts and 5xx
	// responses. Retried with exponential backoff inside the client.
	KindConnection

	// KindAuthentication means the platform rejected the credentials
	// outside the explicit 401 path.
	KindAuthentication

	// KindTokenExpired is an explicit HTTP 401 on an authenticated call.
	// The secret is known stale, so the client never retries it.
	KindTokenExpired

	// KindRateLimit is an explicit HTTP 429. The client does not retry;
	// the coordinator decides whether to back off the whole cycle.
	KindRateLimit

	// KindData means a structurally-important response (school, version
	// or auth document) was malformed or missing required fields.
	KindData

	// KindAPI is a backend-reported application error, such as a GraphQL
	// errors array on an HTTP 200.
	KindAPI
)

// String returns the stable name used in stats maps and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindSchoolNotFound:
		return "school_not_found"
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindTokenExpired:
		return "token_expired"
	case KindRateLimit:
		return "rate_limit"
	case KindData:
		return "data"
	case KindAPI:
		return "api"
	default:
		return "unexpected"
	}
}

// IsAuth reports whether the kind is credential-related. KindTokenExpired
// is a refinement of KindAuthentication and both escalate immediately.
func (k Kind) IsAuth() bool {
	return k == KindAuthentication || k == KindTokenExpired
}

// Error is the single error type the protocol layer returns.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "fetch_events"
	Err  error  // wrapped cause, may be nil
	Msg  string // human-readable detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// newError builds a tagged error.
func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// ClassifyKind extracts the Kind from err. Errors that did not originate
// in this package classify as KindUnexpected.
func ClassifyKind(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return ClassifyKind(err) == kind
}
