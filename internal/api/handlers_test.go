// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/config"
	"github.com/satchelhq/satchel/internal/models"
	syncpkg "github.com/satchelhq/satchel/internal/sync"
)

// fakeCoordinator serves canned coordinator state.
type fakeCoordinator struct {
	snapshot  *models.Snapshot
	stats     models.FailureStats
	state     string
	refreshed int
}

func (f *fakeCoordinator) Snapshot() (*models.Snapshot, bool) { return f.snapshot, f.snapshot != nil }
func (f *fakeCoordinator) Stats() models.FailureStats         { return f.stats }
func (f *fakeCoordinator) State() string                      { return f.state }
func (f *fakeCoordinator) LastCycleSucceeded() bool           { return f.state == "succeeded" }
func (f *fakeCoordinator) Refresh()                           { f.refreshed++ }

type fakeResolver struct {
	info *models.SchoolInfo
	err  error
}

func (f *fakeResolver) ResolveSchool(context.Context, string) (*models.SchoolInfo, error) {
	return f.info, f.err
}

type fakeAuthURL struct{}

func (fakeAuthURL) BuildAuthURL() string { return "https://school.example.net/login/login.aspx?prelogin=x" }

func testSnapshot() *models.Snapshot {
	due := time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC)
	return &models.Snapshot{
		UserIdentity:    models.UserIdentity{GUID: "self-guid", FullName: "Jane Doe"},
		TrackedChildren: []string{"child-1"},
		Children: map[string]models.ChildSnapshot{
			"child-1": {
				DisplayName: "Alex",
				Events: models.EventWindows{
					Today: []models.Event{{GUID: "e1", Subject: "Maths"}},
				},
				Tasks: models.TaskBuckets{
					All:      []models.Task{{ID: "t1", DueDate: &due}},
					DueToday: []models.Task{{ID: "t1", DueDate: &due}},
					Upcoming: []models.Task{},
					Overdue:  []models.Task{},
				},
			},
		},
		FetchedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func newTestRouter(fc *fakeCoordinator, fr *fakeResolver) http.Handler {
	cfg := &config.Config{
		Platform: config.PlatformConfig{Host: "https://school.example.net", Secret: "super-secret"},
		Server:   config.ServerConfig{Port: 8374},
	}
	h := NewHandler(fc, fr, fakeAuthURL{}, syncpkg.NewRegistry(), cfg)
	return NewRouter(h, &cfg.Server)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	return resp
}

func TestGetSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("published snapshot", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&fakeCoordinator{snapshot: testSnapshot(), state: "succeeded"}, &fakeResolver{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Fatalf("expected success envelope: %+v", resp)
		}
	})

	t.Run("no snapshot yet", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&fakeCoordinator{state: "fetching"}, &fakeResolver{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
			t.Errorf("unexpected envelope: %+v", resp)
		}
	})
}

func TestGetChildSnapshot(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeCoordinator{snapshot: testSnapshot(), state: "succeeded"}, &fakeResolver{})

	t.Run("known child", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/children/child-1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Alex") {
			t.Errorf("body missing child data: %s", rec.Body.String())
		}
	})

	t.Run("unknown child", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/children/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestGetStats(t *testing.T) {
	t.Parallel()

	fc := &fakeCoordinator{
		snapshot: testSnapshot(),
		state:    "succeeded",
		stats: models.FailureStats{
			TotalCycles:       5,
			SuccessCycles:     4,
			FailCycles:        1,
			CountsByKind:      map[string]int{"connection": 1},
			ConsecutiveByKind: map[string]int{},
		},
	}
	router := newTestRouter(fc, &fakeResolver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data statsPayload `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Data.FailureStats.TotalCycles != 5 {
		t.Errorf("stats not passed through: %+v", resp.Data.FailureStats)
	}
	child, ok := resp.Data.Children["child-1"]
	if !ok {
		t.Fatal("expected per-child counters")
	}
	if child.Tasks.DueToday != 1 || child.Tasks.All != 1 || child.EventsToday != 1 {
		t.Errorf("counters = %+v", child)
	}
}

func TestTriggerRefresh(t *testing.T) {
	t.Parallel()

	fc := &fakeCoordinator{state: "idle"}
	router := newTestRouter(fc, &fakeResolver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if fc.refreshed != 1 {
		t.Errorf("refresh calls = %d, want 1", fc.refreshed)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		fc         *fakeCoordinator
		wantStatus string
	}{
		{name: "healthy with snapshot", fc: &fakeCoordinator{snapshot: testSnapshot(), state: "succeeded"}, wantStatus: "healthy"},
		{name: "degraded without snapshot", fc: &fakeCoordinator{state: "fetching"}, wantStatus: "degraded"},
		{name: "degraded after failed cycle", fc: &fakeCoordinator{snapshot: testSnapshot(), state: "failed"}, wantStatus: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := newTestRouter(tt.fc, &fakeResolver{})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"status":"`+tt.wantStatus+`"`) {
				t.Errorf("body = %s, want status %q", rec.Body.String(), tt.wantStatus)
			}
		})
	}
}

func TestGetDiagnosticsRedactsSecret(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeCoordinator{snapshot: testSnapshot(), state: "succeeded"}, &fakeResolver{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "super-secret") {
		t.Error("diagnostics leaked the session secret")
	}
}

func TestResolveSchoolEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		fr := &fakeResolver{info: &models.SchoolInfo{Enabled: true, Name: "Test School", URL: "https://testschool.example.net"}}
		router := newTestRouter(&fakeCoordinator{state: "idle"}, fr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/setup/school", strings.NewReader(`{"code":"testschool"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Test School") {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		fr := &fakeResolver{err: &client.Error{Kind: client.KindSchoolNotFound, Op: "resolve_school", Msg: "nope"}}
		router := newTestRouter(&fakeCoordinator{state: "idle"}, fr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/setup/school", strings.NewReader(`{"code":"nope"}`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("directory unreachable", func(t *testing.T) {
		t.Parallel()

		fr := &fakeResolver{err: &client.Error{Kind: client.KindConnection, Op: "resolve_school", Msg: "down"}}
		router := newTestRouter(&fakeCoordinator{state: "idle"}, fr)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/setup/school", strings.NewReader(`{"code":"testschool"}`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("bad body", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(&fakeCoordinator{state: "idle"}, &fakeResolver{})
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/setup/school", strings.NewReader(`{`))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetAuthURL(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeCoordinator{state: "idle"}, &fakeResolver{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/setup/auth-url", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "prelogin") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
