// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/satchelhq/satchel/internal/logging"
)

// APIResponse is the wrapper every endpoint returns, success or not.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta is response metadata.
type APIMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// Error codes used across endpoints.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeExternalService    = "EXTERNAL_SERVICE_FAILED"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC()},
	})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC()},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Err(err).Msg("Failed to encode API response")
	}
}
