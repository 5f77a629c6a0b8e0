package client

import (
	"encoding/json"
	"time"
)

// AuditEntry is one audited action.
type AuditEntry struct {
	ID            int64          `json:"id"`
	EventID       string         `json:"event_id"`
	ObjectType    string         `json:"object_type"`
	ObjectID      string         `json:"object_id,omitempty"`
	ObjectName    string         `json:"object_name"`
	Action        string         `json:"action"`
	ActorID       string         `json:"actor_id,omitempty"`
	User          string         `json:"user"`
	ProjectID     string         `json:"project_id,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	ParameterID   string         `json:"parameter_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AuditQueryOptions filters an audit log query. Names are resolved by the
// server; times accept the same formats as the CLI.
type AuditQueryOptions struct {
	Type        string
	Action      string
	Name        string
	User        string
	Project     string
	Environment string
	Parameter   string
	Before      string
	After       string
	// MaxEntries caps the result; nil uses the server default of 50 and 0
	// means no cap.
	MaxEntries *int
	PageSize   int
}

// AuditQueryResult holds matching entries, newest first, and any warnings
// about the filter.
type AuditQueryResult struct {
	Entries  []AuditEntry `json:"data"`
	Warnings []string     `json:"warnings"`
	Count    int          `json:"count"`
}

// AuditSummary describes an organization's audit log and retention policy.
type AuditSummary struct {
	TotalRecords int64      `json:"total_records"`
	Earliest     *time.Time `json:"earliest,omitempty"`
	Latest       *time.Time `json:"latest,omitempty"`
	MaxRecords   int        `json:"max_records"`
	MaxDays      int        `json:"max_days"`
}

// PurgeOptions overrides the retention policy for one purge. Nil fields keep
// the server policy.
type PurgeOptions struct {
	MaxDays    *int
	MaxRecords *int
}

// PruneResult reports what a purge removed.
type PruneResult struct {
	ExpiredDeleted  int `json:"expired_deleted"`
	OverflowDeleted int `json:"overflow_deleted"`
	MaxRecords      int `json:"max_records"`
	MaxDays         int `json:"max_days"`
}

// NewAuditEntry is an entry submitted by an external subsystem. EventID makes
// resubmission idempotent; the server assigns one when empty.
type NewAuditEntry struct {
	EventID       string         `json:"event_id,omitempty"`
	ObjectType    string         `json:"object_type"`
	ObjectID      string         `json:"object_id,omitempty"`
	ObjectName    string         `json:"object_name"`
	Action        string         `json:"action"`
	ProjectID     string         `json:"project_id,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	ParameterID   string         `json:"parameter_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// StreamFilter narrows a live tail. Empty fields match everything.
type StreamFilter struct {
	Type   string `json:"type,omitempty"`
	Action string `json:"action,omitempty"`
	Name   string `json:"name,omitempty"`
}

// StreamEvent is a message received on the audit stream.
type StreamEvent struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
}

// StreamEntry is the payload of an "audit.entry" stream event.
type StreamEntry struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	ObjectType string    `json:"object_type"`
	ObjectName string    `json:"object_name"`
	Action     string    `json:"action"`
	User       string    `json:"user"`
	Timestamp  time.Time `json:"timestamp"`
}

// Environment is a deployment target.
type Environment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Project groups parameters and templates.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Parameter is a configuration item of a project.
type Parameter struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Secret      bool      `json:"secret"`
	CreatedAt   time.Time `json:"created_at"`
}

// Value is a parameter's value in one environment.
type Value struct {
	ID            string    `json:"id"`
	ParameterID   string    `json:"parameter_id"`
	EnvironmentID string    `json:"environment_id"`
	Value         string    `json:"value"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Template is a text body rendered against a project's parameters.
type Template struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a person or service account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedUser carries the API key of a newly created user. It is shown once.
type CreatedUser struct {
	User
	APIKey string `json:"api_key"`
}

// CreateNamedRequest creates an environment or project.
type CreateNamedRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateParameterRequest creates a parameter.
type CreateParameterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Secret      bool   `json:"secret"`
}

// CreateTemplateRequest creates a template.
type CreateTemplateRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// CreateUserRequest creates a user. Kind is "user" or "service-account".
type CreateUserRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	StreamClients int     `json:"stream_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadyResponse is the readiness check payload.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
