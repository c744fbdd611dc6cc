// Satchel - School Platform Timetable & Task Sync
// Copyright 2026 M. Whitfield (satchelhq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/satchelhq/satchel

/*
codec.go - Wire format codec

The school platform speaks three wire formats:

  - small XML "info documents" for the school directory, API version and
    authentication token responses
  - GraphQL-JSON envelopes ({"data": ...} or {"errors": [...]})
  - REST-JSON list responses (timetable array, task listing {"items": []})

Decoding is pure and stateless. Structural failures in the XML documents
are KindData (or KindAuthentication for the token blob); GraphQL errors
arrays promote to KindAPI even on HTTP 200.
*/

package client

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/satchelhq/satchel/internal/models"
)

// schoolDocument mirrors the app gateway's school directory XML:
//
//	<response exists="true" enabled="true">
//	  <name>Test School</name>
//	  <installationId>abc-123</installationId>
//	  <address ssl="true">testschool.example.net</address>
//	</response>
type schoolDocument struct {
	Exists         string `xml:"exists,attr"`
	Enabled        string `xml:"enabled,attr"`
	Name           string `xml:"name"`
	InstallationID string `xml:"installationId"`
	Address        struct {
		SSL  string `xml:"ssl,attr"`
		Host string `xml:",chardata"`
	} `xml:"address"`
}

// versionDocument mirrors the login API's version XML.
type versionDocument struct {
	Major     string `xml:"majorVersion"`
	Minor     string `xml:"minorVersion"`
	Increment string `xml:"incrementVersion"`
}

// authDocument mirrors the token XML embedded in the browser's
// authentication response.
type authDocument struct {
	Secret string `xml:"secret"`
	User   *struct {
		Username string `xml:"username,attr"`
		FullName string `xml:"fullname,attr"`
		Email    string `xml:"email,attr"`
		Role     string `xml:"role,attr"`
		GUID     string `xml:"guid,attr"`
	} `xml:"user"`
}

// graphQLEnvelope is the response wrapper for GraphQL queries.
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// decodeSchoolDocument parses a school directory response. Absence of the
// school (exists="false") is KindSchoolNotFound; any missing required
// element is KindData.
func decodeSchoolDocument(data []byte, code string) (*schoolDocument, error) {
	var doc schoolDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, newError(KindData, "resolve_school", "invalid XML response", err)
	}
	if doc.Exists == "false" {
		return nil, newError(KindSchoolNotFound, "resolve_school", "school not found: "+code, nil)
	}
	if strings.TrimSpace(doc.Address.Host) == "" {
		return nil, newError(KindData, "resolve_school", "invalid school data received", nil)
	}
	if doc.Name == "" || doc.InstallationID == "" {
		return nil, newError(KindData, "resolve_school", "missing required school data", nil)
	}
	doc.Address.Host = strings.TrimSpace(doc.Address.Host)
	return &doc, nil
}

// decodeVersionDocument parses the API version response.
func decodeVersionDocument(data []byte) (models.Version, error) {
	var doc versionDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return models.Version{}, newError(KindData, "fetch_api_version", "invalid version response", err)
	}
	if doc.Major == "" || doc.Minor == "" || doc.Increment == "" {
		return models.Version{}, newError(KindData, "fetch_api_version", "missing version data", nil)
	}
	major, err := strconv.Atoi(strings.TrimSpace(doc.Major))
	if err != nil {
		return models.Version{}, newError(KindData, "fetch_api_version", "invalid version data", err)
	}
	minor, err := strconv.Atoi(strings.TrimSpace(doc.Minor))
	if err != nil {
		return models.Version{}, newError(KindData, "fetch_api_version", "invalid version data", err)
	}
	increment, err := strconv.Atoi(strings.TrimSpace(doc.Increment))
	if err != nil {
		return models.Version{}, newError(KindData, "fetch_api_version", "invalid version data", err)
	}
	return models.Version{Major: major, Minor: minor, Increment: increment}, nil
}

// unquoteAuthBlob strips the JavaScript-string escaping the platform
// wraps the token XML in: surrounding quotes, escaped quotes and escaped
// backslashes.
func unquoteAuthBlob(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = raw[1 : len(raw)-1]
	}
	raw = strings.ReplaceAll(raw, `\"`, `"`)
	raw = strings.ReplaceAll(raw, `\\`, `\`)
	return raw
}

// decodeAuthDocument parses the token XML pasted back from the browser
// flow. An empty user element is valid and yields a nil identity; a
// missing secret or missing user element is an authentication failure.
func decodeAuthDocument(raw string) (*models.AuthResult, error) {
	const op = "complete_authentication"
	if strings.TrimSpace(raw) == "" {
		return nil, newError(KindAuthentication, op, "empty authentication response", nil)
	}

	var doc authDocument
	if err := xml.Unmarshal([]byte(unquoteAuthBlob(raw)), &doc); err != nil {
		return nil, newError(KindAuthentication, op, "invalid XML in auth response", err)
	}
	if doc.User == nil {
		return nil, newError(KindAuthentication, op, "missing authentication data", nil)
	}
	if doc.Secret == "" {
		return nil, newError(KindAuthentication, op, "empty secret in authentication response", nil)
	}

	result := &models.AuthResult{Secret: doc.Secret}
	if doc.User.GUID != "" || doc.User.Username != "" || doc.User.FullName != "" {
		result.User = &models.UserIdentity{
			GUID:     doc.User.GUID,
			Username: doc.User.Username,
			FullName: doc.User.FullName,
			Email:    doc.User.Email,
			Role:     doc.User.Role,
		}
	}
	return result, nil
}

// decodeGraphQLResponse unwraps a GraphQL envelope. A non-empty errors
// array is a backend-reported failure even when the HTTP status was 200.
func decodeGraphQLResponse(data []byte, op string) (json.RawMessage, error) {
	var envelope graphQLEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, newError(KindData, op, "invalid GraphQL response", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, newError(KindAPI, op, "GraphQL errors: "+strings.Join(msgs, "; "), nil)
	}
	return envelope.Data, nil
}

// restEvent is the REST timetable record with its field-union start/end
// keys. convert() collapses the union; a missing field becomes an empty
// string rather than failing the fetch.
type restEvent struct {
	GUID        string `json:"guid"`
	StartUTC    string `json:"startUtc"`
	StartZoned  string `json:"startZoned"`
	EndUTC      string `json:"endUtc"`
	EndZoned    string `json:"endZoned"`
	Location    string `json:"location"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Attendees   []struct {
		Role string `json:"role"`
		Name string `json:"name"`
		GUID struct {
			Value string `json:"value"`
		} `json:"guid"`
	} `json:"attendees"`
}

func (e *restEvent) convert() models.RawEvent {
	start := e.StartUTC
	if start == "" {
		start = e.StartZoned
	}
	end := e.EndUTC
	if end == "" {
		end = e.EndZoned
	}
	out := models.RawEvent{
		GUID:        e.GUID,
		Start:       start,
		End:         end,
		Subject:     e.Subject,
		Location:    e.Location,
		Description: e.Description,
	}
	for _, a := range e.Attendees {
		var ra models.RawAttendee
		ra.Role = a.Role
		ra.Principal.GUID = a.GUID.Value
		ra.Principal.Name = a.Name
		out.Attendees = append(out.Attendees, ra)
	}
	return out
}

// decodeTimetableResponse parses the REST timetable array into raw
// events with the field union already collapsed.
func decodeTimetableResponse(data []byte) ([]models.RawEvent, error) {
	var events []restEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, newError(KindData, "fetch_events", "invalid timetable response", err)
	}
	out := make([]models.RawEvent, 0, len(events))
	for i := range events {
		out = append(out, events[i].convert())
	}
	return out, nil
}

// taskListing is the task endpoint's response wrapper.
type taskListing struct {
	Items []models.RawTask `json:"items"`
}

// decodeTaskListing parses the task listing response.
func decodeTaskListing(data []byte) ([]models.RawTask, error) {
	var listing taskListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, newError(KindData, "fetch_tasks", "invalid task listing response", err)
	}
	return listing.Items, nil
}
