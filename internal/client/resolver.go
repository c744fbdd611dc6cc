// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
resolver.go - School directory lookup

One-shot translation of a human-entered school code into a base URL,
freshly generated device id and pre-built authentication URL via the
platform's public app gateway. No session is required, so the resolver
carries its own HTTP client.
*/

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satchelhq/satchel/internal/models"
)

// DefaultGatewayURL is the platform's public school directory endpoint.
const DefaultGatewayURL = "https://appgateway.fireflysolutions.co.uk/appgateway/school/"

// Resolver performs school directory lookups.
type Resolver struct {
	gatewayURL string
	appID      string
	httpClient *http.Client
}

// NewResolver creates a directory resolver. Empty arguments fall back to
// the public gateway and a 30 second timeout.
func NewResolver(gatewayURL, appID string, timeout time.Duration) *Resolver {
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Resolver{
		gatewayURL: gatewayURL,
		appID:      appID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveSchool looks up a school code and returns the school's
// enablement flag, canonical name, base URL (scheme chosen by the
// response's ssl flag), a freshly generated device identifier and a
// pre-built authentication URL. This is a single-attempt operation.
func (r *Resolver) ResolveSchool(ctx context.Context, code string) (*models.SchoolInfo, error) {
	const op = "resolve_school"

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, newError(KindSchoolNotFound, op, "invalid school code", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.gatewayURL+code, http.NoBody)
	if err != nil {
		return nil, newError(KindUnexpected, op, "failed to build request", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindConnection, op, "error connecting to school directory", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindConnection, op,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindConnection, op, "failed to read directory response", err)
	}

	doc, err := decodeSchoolDocument(body, code)
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if doc.Address.SSL == "true" {
		scheme = "https"
	}
	baseURL := scheme + "://" + doc.Address.Host
	deviceID := uuid.NewString()

	return &models.SchoolInfo{
		Enabled:  doc.Enabled == "true",
		Name:     doc.Name,
		ID:       doc.InstallationID,
		Host:     doc.Address.Host,
		SSL:      doc.Address.SSL == "true",
		URL:      baseURL,
		TokenURL: buildAuthURL(baseURL, deviceID, r.appID),
		DeviceID: deviceID,
	}, nil
}
