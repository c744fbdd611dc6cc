// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/models"
	syncpkg "github.com/satchelhq/satchel/internal/sync"
)

// Coordinator is the slice of the sync coordinator the handlers need.
type Coordinator interface {
	Snapshot() (*models.Snapshot, bool)
	Stats() models.FailureStats
	State() string
	LastCycleSucceeded() bool
	Refresh()
}

// SchoolResolver resolves a school code through the platform directory.
type SchoolResolver interface {
	ResolveSchool(ctx context.Context, code string) (*models.SchoolInfo, error)
}

// AuthURLBuilder produces the browser authentication URL for the
// configured school.
type AuthURLBuilder interface {
	BuildAuthURL() string
}

// Handler serves every application endpoint.
type Handler struct {
	coordinator Coordinator
	resolver    SchoolResolver
	authURL     AuthURLBuilder
	registry    *syncpkg.Registry
	cfg         *config.Config
	startedAt   time.Time
}

// NewHandler wires a handler. registry may be nil when no issue
// registry is attached; the issues endpoint then reports an empty set.
func NewHandler(coordinator Coordinator, resolver SchoolResolver, authURL AuthURLBuilder, registry *syncpkg.Registry, cfg *config.Config) *Handler {
	return &Handler{
		coordinator: coordinator,
		resolver:    resolver,
		authURL:     authURL,
		registry:    registry,
		cfg:         cfg,
		startedAt:   time.Now(),
	}
}

// GetSnapshot returns the full published snapshot, or 503 before the
// first successful cycle.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.coordinator.Snapshot()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "No snapshot available yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetChildSnapshot returns one child's slice of the snapshot.
func (h *Handler) GetChildSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.coordinator.Snapshot()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "No snapshot available yet")
		return
	}

	guid := chi.URLParam(r, "guid")
	child, ok := snap.Children[guid]
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No tracked child with that guid")
		return
	}
	respondJSON(w, http.StatusOK, child)
}

// childStats is the per-child block of the stats payload.
type childStats struct {
	DisplayName string            `json:"display_name"`
	EventsToday int               `json:"events_today"`
	EventsWeek  int               `json:"events_week"`
	Tasks       models.TaskCounts `json:"tasks"`
}

// statsPayload is the stats endpoint response.
type statsPayload struct {
	State         string                `json:"state"`
	LastCycleOK   bool                  `json:"last_cycle_ok"`
	FailureStats  models.FailureStats   `json:"failure_stats"`
	FetchedAt     *time.Time            `json:"fetched_at,omitempty"`
	Children      map[string]childStats `json:"children"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
}

// GetStats returns cycle statistics plus per-child counters so simple
// consumers never walk the full snapshot.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	payload := statsPayload{
		State:         h.coordinator.State(),
		LastCycleOK:   h.coordinator.LastCycleSucceeded(),
		FailureStats:  h.coordinator.Stats(),
		Children:      make(map[string]childStats),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if snap, ok := h.coordinator.Snapshot(); ok {
		payload.FetchedAt = &snap.FetchedAt
		for guid, child := range snap.Children {
			payload.Children[guid] = childStats{
				DisplayName: child.DisplayName,
				EventsToday: len(child.Events.Today),
				EventsWeek:  len(child.Events.Week),
				Tasks:       child.Tasks.Counts(),
			}
		}
	}
	respondJSON(w, http.StatusOK, payload)
}

// GetIssues returns the active escalated issues.
func (h *Handler) GetIssues(w http.ResponseWriter, r *http.Request) {
	issues := []syncpkg.Issue{}
	if h.registry != nil {
		issues = h.registry.Active()
	}
	respondJSON(w, http.StatusOK, issues)
}

// TriggerRefresh queues an on-demand sync cycle.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Refresh()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "refresh queued"})
}

// Health reports liveness plus sync state. Degraded means the service
// runs but has no fresh data.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, hasSnapshot := h.coordinator.Snapshot()

	status := "healthy"
	if !hasSnapshot || !h.coordinator.LastCycleSucceeded() {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"state":          h.coordinator.State(),
		"has_snapshot":   hasSnapshot,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// diagnosticsPayload is the diagnostics export. Credentials are masked
// before anything is serialized; record contents are reduced to counts.
type diagnosticsPayload struct {
	Config       config.Config         `json:"config"`
	FailureStats models.FailureStats   `json:"failure_stats"`
	State        string                `json:"state"`
	Children     map[string]childStats `json:"children"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// GetDiagnostics exports a redacted support bundle.
func (h *Handler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	payload := diagnosticsPayload{
		Config:       h.cfg.Redacted(),
		FailureStats: h.coordinator.Stats(),
		State:        h.coordinator.State(),
		Children:     make(map[string]childStats),
		GeneratedAt:  time.Now().UTC(),
	}
	if snap, ok := h.coordinator.Snapshot(); ok {
		for guid, child := range snap.Children {
			payload.Children[guid] = childStats{
				DisplayName: child.DisplayName,
				EventsToday: len(child.Events.Today),
				EventsWeek:  len(child.Events.Week),
				Tasks:       child.Tasks.Counts(),
			}
		}
	}
	respondJSON(w, http.StatusOK, payload)
}

// ResolveSchool looks up a school code in the platform directory and
// returns the connection bundle the setup flow needs.
func (h *Handler) ResolveSchool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
		return
	}

	info, err := h.resolver.ResolveSchool(r.Context(), req.Code)
	if err != nil {
		var cerr *client.Error
		if errors.As(err, &cerr) && cerr.Kind == client.KindSchoolNotFound {
			respondError(w, http.StatusNotFound, ErrCodeNotFound, "School not found or not enabled")
			return
		}
		respondError(w, http.StatusBadGateway, ErrCodeExternalService, "School directory lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// GetAuthURL returns the browser authentication URL for the configured
// school.
func (h *Handler) GetAuthURL(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"auth_url": h.authURL.BuildAuthURL()})
}
