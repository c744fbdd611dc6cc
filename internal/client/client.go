// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
client.go - Core school platform API client

This file provides the Client struct and HTTP communication layer for the
school platform's mixed-protocol API surface (XML info documents, GraphQL
and REST-JSON).

Client Features:
  - HTTP client with configurable timeout
  - Device-id + session-secret authentication on every call
  - Request pacing via golang.org/x/time/rate
  - Bounded retry with exponential backoff (1s, 2s, 4s) on transport
    failures; HTTP 401 and 429 are never retried
  - Context support for cancellation, including during backoff waits

The session secret is owned exclusively by the client and rotates when
CompleteAuthentication succeeds.

Related Files:
  - codec.go: wire format decoding
  - resolver.go: school directory lookup
  - errors.go: tagged error taxonomy
  - breaker.go: circuit breaker wrapper
*/

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/models"
)

// Platform endpoint paths.
const (
	versionPath     = "/login/api/version"
	verifyTokenPath = "/Login/api/verifytoken"
	graphQLPath     = "/_api/1.0/graphql"
	taskListingPath = "/api/v2/taskListing/view/parent/tasks/all/filterBy"
	getTokenPath    = "/Login/api/gettoken"
	loginPagePath   = "/login/login.aspx"
)

// Task listing defaults.
const (
	TaskStatusTodo      = "Todo"
	TaskStatusCompleted = "Completed"
	TaskOwnerSetters    = "OnlySetters"
	TaskArchiveAll      = "All"
	defaultTaskPageSize = 100
)

// maxErrorBodySize limits how much of a response body is read for error
// reporting.
const maxErrorBodySize = 64 * 1024 // 64KB

// Interface defines the API operations the coordinator consumes. It is
// implemented by Client for production use, by BreakerClient for
// circuit-breaker protection and by fakes in tests.
type Interface interface {
	FetchAPIVersion(ctx context.Context) (models.Version, error)
	VerifyCredentials(ctx context.Context) (bool, error)
	FetchUserIdentity(ctx context.Context) (models.UserIdentity, error)
	FetchChildren(ctx context.Context) ([]models.ChildProfile, error)
	FetchEvents(ctx context.Context, start, end time.Time, childGUID string) ([]models.RawEvent, error)
	FetchTasks(ctx context.Context, filters models.TaskFilters) ([]models.RawTask, error)
	FetchGroups(ctx context.Context, userGUID string) ([]models.Group, error)
}

// Ensure Client implements Interface.
var _ Interface = (*Client)(nil)

// Client talks to one school's platform instance.
//
// Thread Safety: safe for concurrent use. The mutable session secret and
// cached identity are guarded by a mutex; everything else is immutable
// after construction.
type Client struct {
	host           string
	deviceID       string
	appID          string
	httpClient     *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration

	mu       sync.RWMutex
	secret   string
	identity *models.UserIdentity
}

// New creates an API client from platform configuration. When the config
// carries a user GUID a minimal identity is seeded so data fetches can
// proceed without a fresh authentication round-trip.
func New(cfg *config.PlatformConfig) *Client {
	c := &Client{
		host:           strings.TrimSuffix(cfg.Host, "/"),
		deviceID:       cfg.DeviceID,
		appID:          cfg.AppID,
		secret:         cfg.Secret,
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.retryBaseDelay <= 0 {
		c.retryBaseDelay = time.Second
	}
	if cfg.UserGUID != "" {
		c.identity = &models.UserIdentity{GUID: cfg.UserGUID, Role: cfg.UserRole}
	}
	return c
}

// readBodyForError reads up to 64KB of a response body for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// authParams returns the query parameters every authenticated call
// carries.
func (c *Client) authParams() url.Values {
	c.mu.RLock()
	secret := c.secret
	c.mu.RUnlock()

	params := url.Values{}
	params.Set("ffauth_device_id", c.deviceID)
	params.Set("ffauth_secret", secret)
	return params
}

// doWithRetry executes a request with bounded retry. The request is
// rebuilt each attempt because bodies are single-use. Transport failures
// and non-2xx statuses other than 401/429 retry with exponential backoff
// (1s, 2s, 4s); the final failure surfaces as KindConnection. 401 maps
// to KindTokenExpired and 429 to KindRateLimit, both without retry.
func (c *Client) doWithRetry(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newError(KindConnection, op, "request cancelled", err)
		}

		req, err := build(ctx)
		if err != nil {
			return nil, newError(KindUnexpected, op, "failed to build request", err)
		}

		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			lastErr = newError(KindConnection, op, "request failed", err)
		case resp.StatusCode == http.StatusUnauthorized:
			_ = resp.Body.Close()
			return nil, newError(KindTokenExpired, op, "authentication token expired", nil)
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			return nil, newError(KindRateLimit, op, "rate limit exceeded", nil)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			body := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			lastErr = newError(KindConnection, op,
				fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
		default:
			return resp, nil
		}

		if attempt == c.maxRetries-1 {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, newError(KindConnection, op, "request cancelled during backoff", ctx.Err())
		}
	}

	return nil, lastErr
}

// FetchAPIVersion retrieves the platform's API version triple.
func (c *Client) FetchAPIVersion(ctx context.Context) (models.Version, error) {
	const op = "fetch_api_version"

	resp, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.host+versionPath, http.NoBody)
	})
	if err != nil {
		return models.Version{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Version{}, newError(KindConnection, op, "failed to read version response", err)
	}
	return decodeVersionDocument(body)
}

// VerifyCredentials checks whether the stored device id and secret are
// still valid. HTTP 401 is an expected negative result, not an error.
// This is a single-attempt operation.
func (c *Client) VerifyCredentials(ctx context.Context) (bool, error) {
	const op = "verify_credentials"

	reqURL := c.host + verifyTokenPath + "?" + c.authParams().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return false, newError(KindUnexpected, op, "failed to build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, newError(KindConnection, op, "error verifying credentials", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, newError(KindAuthentication, op,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, newError(KindData, op, "invalid verify response", err)
	}
	return payload.Valid, nil
}

// CompleteAuthentication parses the token blob the user's browser
// returned and, on success, rotates the held session secret and caches
// the embedded identity.
func (c *Client) CompleteAuthentication(raw string) (*models.AuthResult, error) {
	result, err := decodeAuthDocument(raw)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.secret = result.Secret
	if result.User != nil {
		c.identity = result.User
	}
	c.mu.Unlock()

	return result, nil
}

// FetchUserIdentity returns the cached identity. Identity arrives either
// from stored configuration or from CompleteAuthentication; without it
// every authenticated fetch would fail anyway, so its absence is an
// authentication error.
func (c *Client) FetchUserIdentity(_ context.Context) (models.UserIdentity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.identity == nil {
		return models.UserIdentity{}, newError(KindAuthentication, "fetch_user_identity", "no user information available", nil)
	}
	return *c.identity, nil
}

// graphQLQuery executes a GraphQL query through the form-encoded
// envelope the platform expects and unwraps the response data.
func (c *Client) graphQLQuery(ctx context.Context, op, query string) (json.RawMessage, error) {
	reqURL := c.host + graphQLPath + "?" + c.authParams().Encode()
	form := "data=" + url.QueryEscape(query)

	resp, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindConnection, op, "failed to read GraphQL response", err)
	}
	return decodeGraphQLResponse(body, op)
}

// FetchChildren returns the tracked-child profiles for the signed-in
// account. Student accounts are their own sole child; parent accounts
// query the platform for linked children.
func (c *Client) FetchChildren(ctx context.Context) ([]models.ChildProfile, error) {
	const op = "fetch_children"

	identity, err := c.FetchUserIdentity(ctx)
	if err != nil {
		return nil, err
	}

	if identity.Role == "student" {
		return []models.ChildProfile{{
			GUID:     identity.GUID,
			Username: identity.Username,
			Name:     identity.Name,
			FullName: identity.FullName,
		}}, nil
	}

	query := fmt.Sprintf(`
	query GetChildren {
		users(guid: %q) {
			children {
				guid,
				username,
				name
			}
		}
	}`, identity.GUID)

	data, err := c.graphQLQuery(ctx, op, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Users []struct {
			Children []models.ChildProfile `json:"children"`
		} `json:"users"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(KindData, op, "invalid children response", err)
	}
	if len(payload.Users) == 0 {
		return []models.ChildProfile{}, nil
	}
	return payload.Users[0].Children, nil
}

// FetchEvents retrieves timetable events for a date range via the REST
// timetable endpoint, choosing "day" granularity when the range spans at
// most one day and "week" otherwise.
func (c *Client) FetchEvents(ctx context.Context, start, end time.Time, childGUID string) ([]models.RawEvent, error) {
	const op = "fetch_events"

	guid := childGUID
	if guid == "" {
		identity, err := c.FetchUserIdentity(ctx)
		if err != nil {
			return nil, err
		}
		guid = identity.GUID
	}
	if guid == "" {
		return nil, newError(KindAuthentication, op, "no user GUID available", nil)
	}

	period := "week"
	if int(end.Sub(start).Hours()/24) <= 1 {
		period = "day"
	}

	params := c.authParams()
	params.Set("datetime", start.Format("2006-01-02T15:04"))
	reqURL := fmt.Sprintf("%s/api/v3/timetable/%s/%s?%s", c.host, url.PathEscape(guid), period, params.Encode())

	resp, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindConnection, op, "failed to read timetable response", err)
	}
	return decodeTimetableResponse(body)
}

// FetchTasks retrieves the task listing through the paginated filter
// endpoint. Zero-valued filter fields fall back to the platform
// defaults.
func (c *Client) FetchTasks(ctx context.Context, filters models.TaskFilters) ([]models.RawTask, error) {
	const op = "fetch_tasks"

	if filters.PageSize <= 0 {
		filters.PageSize = defaultTaskPageSize
	}
	if filters.CompletionStatus == "" {
		filters.CompletionStatus = TaskStatusTodo
	}
	if filters.OwnerType == "" {
		filters.OwnerType = TaskOwnerSetters
	}
	if filters.ArchiveStatus == "" {
		filters.ArchiveStatus = TaskArchiveAll
	}
	if len(filters.SortingCriteria) == 0 {
		filters.SortingCriteria = []models.TaskSort{{Column: "DueDate", Order: "Descending"}}
	}

	payload := map[string]interface{}{
		"ownerType":        filters.OwnerType,
		"page":             filters.Page,
		"pageSize":         filters.PageSize,
		"archiveStatus":    filters.ArchiveStatus,
		"completionStatus": filters.CompletionStatus,
		"readStatus":       "All",
		"markingStatus":    "All",
		"sortingCriteria":  filters.SortingCriteria,
	}
	if filters.StudentGUID != "" {
		payload["forStudentGuid"] = filters.StudentGUID
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(KindUnexpected, op, "failed to encode task filters", err)
	}

	reqURL := c.host + taskListingPath + "?" + c.authParams().Encode()
	resp, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindConnection, op, "failed to read task listing response", err)
	}
	return decodeTaskListing(body)
}

// FetchGroups retrieves the classes and groups the user participates in.
func (c *Client) FetchGroups(ctx context.Context, userGUID string) ([]models.Group, error) {
	const op = "fetch_groups"

	if userGUID == "" {
		identity, err := c.FetchUserIdentity(ctx)
		if err != nil {
			return nil, err
		}
		userGUID = identity.GUID
	}
	if userGUID == "" {
		return nil, newError(KindAuthentication, op, "no user GUID available", nil)
	}

	query := fmt.Sprintf(`
	query GetGroups {
		users(guid: %q) {
			participating_in {
				guid,
				sort_key,
				name,
				personal_colour
			}
		}
	}`, userGUID)

	data, err := c.graphQLQuery(ctx, op, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Users []struct {
			ParticipatingIn []models.Group `json:"participating_in"`
		} `json:"users"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, newError(KindData, op, "invalid groups response", err)
	}
	if len(payload.Users) == 0 {
		return []models.Group{}, nil
	}
	return payload.Users[0].ParticipatingIn, nil
}

// BuildAuthURL returns the login page URL the user's browser must visit
// to obtain a fresh token. Pure: no I/O.
func (c *Client) BuildAuthURL() string {
	return buildAuthURL(c.host, c.deviceID, c.appID)
}

// buildAuthURL embeds the token callback inside the platform's prelogin
// redirect parameter.
func buildAuthURL(host, deviceID, appID string) string {
	redirect := fmt.Sprintf("%s%s?ffauth_device_id=%s&ffauth_secret=&device_id=%s&app_id=%s",
		host, getTokenPath, deviceID, deviceID, appID)
	return host + loginPagePath + "?prelogin=" + url.QueryEscape(redirect)
}
