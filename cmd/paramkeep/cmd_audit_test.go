package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paramkeep/paramkeep/client"
)

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// newAuditServer serves GET /api/v1/audit with handler and returns a client for it.
func newAuditServer(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/audit", handler)
	mux.HandleFunc("GET /api/v1/audit/summary", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, client.WithAPIKey("pk_test"))
}

func TestRunAuditList_Empty(t *testing.T) {
	tests := []struct {
		name  string
		flags auditListFlags
		want  string
	}{
		{"no filters", auditListFlags{max: 50}, "No audit log entries found\n"},
		{
			"type name and action",
			auditListFlags{objectType: "snafoo", name: "db", action: "delete", max: 50},
			"No audit log entries found matching type==snafoo, name-contains 'db', action==delete\n",
		},
		{
			"type in canonical spelling",
			auditListFlags{objectType: "parameter", max: 50},
			"No audit log entries found matching type==Parameter\n",
		},
		{
			"service account alias",
			auditListFlags{objectType: "service-account", action: "create", max: 50},
			"No audit log entries found matching type==ServiceAccount, action==create\n",
		},
		{"user filter is not listed", auditListFlags{user: "alice", max: 50}, "No audit log entries found\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newAuditServer(t, func(w http.ResponseWriter, _ *http.Request) {
				jsonResponse(w, 200, map[string]any{"data": []any{}, "warnings": []string{}, "count": 0})
			})
			var out, errOut bytes.Buffer
			if err := runAuditList(context.Background(), &out, &errOut, c, tc.flags); err != nil {
				t.Fatalf("runAuditList: %v", err)
			}
			if out.String() != tc.want {
				t.Errorf("got %q, want %q", out.String(), tc.want)
			}
		})
	}
}

func TestRunAuditList_WarningsToStderr(t *testing.T) {
	resetFlags(t)
	flagFmt = "table"
	c := newAuditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, 200, map[string]any{
			"data":     []any{},
			"warnings": []string{"The specified --type is not one of the recognized values: Environment"},
		})
	})
	var out, errOut bytes.Buffer
	if err := runAuditList(context.Background(), &out, &errOut, c, auditListFlags{objectType: "snafoo"}); err != nil {
		t.Fatalf("runAuditList: %v", err)
	}
	if !strings.Contains(errOut.String(), "not one of the recognized values") {
		t.Errorf("stderr = %q", errOut.String())
	}
	if strings.Contains(out.String(), "recognized") {
		t.Errorf("warning leaked to stdout: %q", out.String())
	}
}

func TestRunAuditList_SendsMaxZero(t *testing.T) {
	c := newAuditServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("max_entries"); got != "0" {
			t.Errorf("max_entries = %q, want 0", got)
		}
		if got := r.URL.Query().Get("environment"); got != "prod" {
			t.Errorf("environment = %q, want prod", got)
		}
		jsonResponse(w, 200, map[string]any{"data": []any{}})
	})
	if err := runAuditList(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, c, auditListFlags{env: "prod"}); err != nil {
		t.Fatalf("runAuditList: %v", err)
	}
}

func TestRunAuditList_NegativeMax(t *testing.T) {
	if err := runAuditList(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, nil, auditListFlags{max: -1}); err == nil {
		t.Error("expected error for negative --max")
	}
}

func TestRunAuditList_JSON(t *testing.T) {
	resetFlags(t)
	flagFmt = "json"
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	c := newAuditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, 200, map[string]any{
			"data": []client.AuditEntry{
				{ID: 3, ObjectType: "Value", ObjectName: "DB_HOST:default", Action: "update", User: "alice", Timestamp: ts},
			},
			"count": 1,
		})
	})

	var out bytes.Buffer
	if err := runAuditList(context.Background(), &out, &bytes.Buffer{}, c, auditListFlags{max: 50}); err != nil {
		t.Fatalf("runAuditList: %v", err)
	}

	var got map[string][]map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out.String())
	}
	row := got["audit-logs"][0]
	want := map[string]string{
		"Time":        "2026-03-04T05:06:07Z",
		"Object Name": "DB_HOST:default",
		"Type":        "Value",
		"Action":      "update",
		"User":        "alice",
	}
	for k, v := range want {
		if row[k] != v {
			t.Errorf("%s = %q, want %q", k, row[k], v)
		}
	}
}

func TestRunAuditList_APIError(t *testing.T) {
	c := newAuditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, 404, map[string]string{"code": "environment_not_found", "message": "Environment 'bogus-env' not found"})
	})
	err := runAuditList(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, c, auditListFlags{env: "bogus-env"})
	if exitCode(err) != exitEnvNotFound {
		t.Errorf("exit code = %d, want %d (err %v)", exitCode(err), exitEnvNotFound, err)
	}
}

func TestRunAuditSummary(t *testing.T) {
	resetFlags(t)
	flagFmt = "table"
	earliest := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newAuditServer(t, func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, 200, client.AuditSummary{TotalRecords: 12, Earliest: &earliest, MaxRecords: 100000, MaxDays: 90})
	})

	var out bytes.Buffer
	if err := runAuditSummary(context.Background(), &out, c); err != nil {
		t.Fatalf("runAuditSummary: %v", err)
	}
	want := "Record count: 12\nEarliest record: 2026-01-01T00:00:00Z\nPolicy:\n  Maximum records: 100000\n  Maximum days: 90\n"
	if out.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"invalid_value", 34},
		{"user_not_found", 35},
		{"environment_not_found", 36},
		{"project_not_found", 37},
		{"parameter_not_found", 38},
		{"invalid_combination", 39},
		{"internal_error", 1},
	}
	for _, tc := range tests {
		err := &client.APIError{StatusCode: 400, Code: tc.code}
		if got := exitCode(err); got != tc.want {
			t.Errorf("exitCode(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
	if got := exitCode(errors.New("dial tcp: refused")); got != 1 {
		t.Errorf("exitCode(transport) = %d, want 1", got)
	}
}

func TestPrintError_Details(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, "audit query", &client.APIError{
		StatusCode: 400,
		Code:       "invalid_value",
		Message:    "Invalid '--after' value",
		Details:    []string{"Invalid '--after' value", "Invalid '--before' value"},
	})
	want := "Error: Invalid '--after' value\nError: Invalid '--before' value\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintStreamEvent(t *testing.T) {
	resetFlags(t)
	flagFmt = "table"
	var buf bytes.Buffer

	ev := client.StreamEvent{
		Type: "audit.entry",
		Data: json.RawMessage(`{"id":5,"object_type":"Project","object_name":"web","action":"create","user":"admin","timestamp":"2026-02-03T04:05:06Z"}`),
	}
	if err := printStreamEvent(&buf, ev); err != nil {
		t.Fatalf("printStreamEvent: %v", err)
	}
	if err := printStreamEvent(&buf, client.StreamEvent{Type: "ping"}); err != nil {
		t.Fatalf("printStreamEvent(ping): %v", err)
	}
	want := "2026-02-03T04:05:06Z  web  Project  create  admin\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
