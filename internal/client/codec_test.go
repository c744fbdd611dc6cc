// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

package client

import (
	"strings"
	"testing"
)

func TestDecodeSchoolDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		xml      string
		wantKind Kind
		wantHost string
		wantSSL  string
	}{
		{
			name: "valid school with ssl",
			xml: `<response exists="true" enabled="true">
				<name>Test School</name>
				<installationId>abc-123</installationId>
				<address ssl="true">testschool.example.net</address>
			</response>`,
			wantHost: "testschool.example.net",
			wantSSL:  "true",
		},
		{
			name:     "school does not exist",
			xml:      `<response exists="false" enabled="false"></response>`,
			wantKind: KindSchoolNotFound,
		},
		{
			name: "missing address",
			xml: `<response exists="true" enabled="true">
				<name>Test School</name>
				<installationId>abc-123</installationId>
			</response>`,
			wantKind: KindData,
		},
		{
			name: "missing name",
			xml: `<response exists="true" enabled="true">
				<installationId>abc-123</installationId>
				<address ssl="true">testschool.example.net</address>
			</response>`,
			wantKind: KindData,
		},
		{
			name:     "malformed xml",
			xml:      `<response exists=`,
			wantKind: KindData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := decodeSchoolDocument([]byte(tt.xml), "testschool")
			if tt.wantKind != 0 {
				if err == nil {
					t.Fatalf("expected error of kind %s, got nil", tt.wantKind)
				}
				if !IsKind(err, tt.wantKind) {
					t.Fatalf("expected kind %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Address.Host != tt.wantHost {
				t.Errorf("host = %q, want %q", doc.Address.Host, tt.wantHost)
			}
			if doc.Address.SSL != tt.wantSSL {
				t.Errorf("ssl = %q, want %q", doc.Address.SSL, tt.wantSSL)
			}
		})
	}
}

func TestDecodeVersionDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		xml     string
		want    string
		wantErr bool
	}{
		{
			name: "valid version",
			xml: `<version>
				<majorVersion>6</majorVersion>
				<minorVersion>12</minorVersion>
				<incrementVersion>3</incrementVersion>
			</version>`,
			want: "6.12.3",
		},
		{
			name:    "missing increment",
			xml:     `<version><majorVersion>6</majorVersion><minorVersion>12</minorVersion></version>`,
			wantErr: true,
		},
		{
			name:    "non-numeric component",
			xml:     `<version><majorVersion>six</majorVersion><minorVersion>12</minorVersion><incrementVersion>3</incrementVersion></version>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v, err := decodeVersionDocument([]byte(tt.xml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsKind(err, KindData) {
					t.Fatalf("expected data error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.String() != tt.want {
				t.Errorf("version = %q, want %q", v.String(), tt.want)
			}
		})
	}
}

func TestDecodeAuthDocument(t *testing.T) {
	t.Parallel()

	validXML := `<token><secret>s3cret</secret>` +
		`<user username="jdoe" fullname="Jane Doe" email="jdoe@example.net" role="parent" guid="guid-1"/></token>`

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()

		result, err := decodeAuthDocument(validXML)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Secret != "s3cret" {
			t.Errorf("secret = %q, want %q", result.Secret, "s3cret")
		}
		if result.User == nil {
			t.Fatal("expected user identity")
		}
		if result.User.GUID != "guid-1" || result.User.FullName != "Jane Doe" {
			t.Errorf("unexpected identity: %+v", result.User)
		}
	})

	t.Run("javascript string escaping stripped", func(t *testing.T) {
		t.Parallel()

		escaped := `"` + strings.ReplaceAll(validXML, `"`, `\"`) + `"`
		result, err := decodeAuthDocument(escaped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Secret != "s3cret" {
			t.Errorf("secret = %q, want %q", result.Secret, "s3cret")
		}
	})

	t.Run("empty user element is valid with nil identity", func(t *testing.T) {
		t.Parallel()

		result, err := decodeAuthDocument(`<token><secret>s3cret</secret><user/></token>`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.User != nil {
			t.Errorf("expected nil identity, got %+v", result.User)
		}
	})

	t.Run("empty response", func(t *testing.T) {
		t.Parallel()

		_, err := decodeAuthDocument("   ")
		if !IsKind(err, KindAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
	})

	t.Run("missing user element", func(t *testing.T) {
		t.Parallel()

		_, err := decodeAuthDocument(`<token><secret>s3cret</secret></token>`)
		if !IsKind(err, KindAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
	})

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()

		_, err := decodeAuthDocument(`<token><secret></secret><user guid="g"/></token>`)
		if !IsKind(err, KindAuthentication) {
			t.Fatalf("expected authentication error, got %v", err)
		}
	})
}

func TestDecodeGraphQLResponse(t *testing.T) {
	t.Parallel()

	t.Run("data envelope", func(t *testing.T) {
		t.Parallel()

		data, err := decodeGraphQLResponse([]byte(`{"data":{"users":[]}}`), "test_op")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"users":[]}` {
			t.Errorf("data = %s", data)
		}
	})

	t.Run("errors array promotes to API error", func(t *testing.T) {
		t.Parallel()

		_, err := decodeGraphQLResponse([]byte(`{"errors":[{"message":"boom"}]}`), "test_op")
		if !IsKind(err, KindAPI) {
			t.Fatalf("expected API error, got %v", err)
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("error should carry backend message: %v", err)
		}
	})
}

func TestDecodeTimetableResponse(t *testing.T) {
	t.Parallel()

	t.Run("field union collapses to utc when present", func(t *testing.T) {
		t.Parallel()

		body := `[{"guid":"e1","startUtc":"2026-03-02T09:00:00Z","endUtc":"2026-03-02T10:00:00Z","subject":"Maths"}]`
		events, err := decodeTimetableResponse([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		if events[0].Start != "2026-03-02T09:00:00Z" {
			t.Errorf("start = %q", events[0].Start)
		}
	})

	t.Run("zoned fields used when utc absent", func(t *testing.T) {
		t.Parallel()

		body := `[{"guid":"e1","startZoned":"2026-03-02T09:00:00","endZoned":"2026-03-02T10:00:00"}]`
		events, err := decodeTimetableResponse([]byte(body))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if events[0].Start != "2026-03-02T09:00:00" || events[0].End != "2026-03-02T10:00:00" {
			t.Errorf("union not collapsed: %+v", events[0])
		}
	})

	t.Run("missing fields default to empty strings", func(t *testing.T) {
		t.Parallel()

		events, err := decodeTimetableResponse([]byte(`[{"guid":"e1"}]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if events[0].Start != "" || events[0].End != "" {
			t.Errorf("expected empty start/end, got %+v", events[0])
		}
	})
}

func TestDecodeTaskListing(t *testing.T) {
	t.Parallel()

	body := `{"items":[{"guid":"t1","title":"Essay","subject":{"name":"English"},"dueDate":"2026-03-05"}]}`
	tasks, err := decodeTaskListing([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].GUID != "t1" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}
