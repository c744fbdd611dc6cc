// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveSchool(t *testing.T) {
	t.Parallel()

	t.Run("valid school over ssl", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/testschool") {
				t.Errorf("path = %q, want school code suffix", r.URL.Path)
			}
			_, _ = w.Write([]byte(`<response exists="true" enabled="true">
				<name>Test School</name>
				<installationId>abc-123</installationId>
				<address ssl="true">testschool.example.net</address>
			</response>`))
		}))
		defer srv.Close()

		r := NewResolver(srv.URL+"/", "Satchel Test", 5*time.Second)
		info, err := r.ResolveSchool(context.Background(), "testschool")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !info.Enabled {
			t.Error("school should be enabled")
		}
		if info.Name != "Test School" {
			t.Errorf("name = %q", info.Name)
		}
		if info.URL != "https://testschool.example.net" {
			t.Errorf("url = %q, want https scheme from ssl attr", info.URL)
		}
		if info.DeviceID == "" {
			t.Error("expected a generated device id")
		}
		if !strings.Contains(info.TokenURL, info.DeviceID) {
			t.Error("token URL should embed the generated device id")
		}
	})

	t.Run("ssl false picks http scheme", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<response exists="true" enabled="true">
				<name>Plain School</name>
				<installationId>def-456</installationId>
				<address ssl="false">plain.example.net</address>
			</response>`))
		}))
		defer srv.Close()

		r := NewResolver(srv.URL+"/", "Satchel Test", 5*time.Second)
		info, err := r.ResolveSchool(context.Background(), "plain")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.URL != "http://plain.example.net" {
			t.Errorf("url = %q, want http scheme", info.URL)
		}
	})

	t.Run("unknown school", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<response exists="false" enabled="false"></response>`))
		}))
		defer srv.Close()

		r := NewResolver(srv.URL+"/", "Satchel Test", 5*time.Second)
		_, err := r.ResolveSchool(context.Background(), "nope")
		if !IsKind(err, KindSchoolNotFound) {
			t.Fatalf("expected school not found, got %v", err)
		}
	})

	t.Run("empty code rejected without a request", func(t *testing.T) {
		t.Parallel()

		r := NewResolver("http://127.0.0.1:1/", "Satchel Test", time.Second)
		_, err := r.ResolveSchool(context.Background(), "  ")
		if !IsKind(err, KindSchoolNotFound) {
			t.Fatalf("expected school not found, got %v", err)
		}
	})

	t.Run("single attempt on server error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		r := NewResolver(srv.URL+"/", "Satchel Test", 5*time.Second)
		_, err := r.ResolveSchool(context.Background(), "testschool")
		if !IsKind(err, KindConnection) {
			t.Fatalf("expected connection error, got %v", err)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("resolver must be single-attempt, made %d calls", got)
		}
	})
}
