package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectType tags the kind of object an audit entry refers to. The set is open:
// audited subsystems may introduce new types before the query layer knows them.
type ObjectType string

// Recognized object types.
const (
	ObjectAwsIntegration    ObjectType = "AwsIntegration"
	ObjectEnvironment       ObjectType = "Environment"
	ObjectGitHubIntegration ObjectType = "GitHubIntegration"
	ObjectInvitation        ObjectType = "Invitation"
	ObjectMembership        ObjectType = "Membership"
	ObjectOrganization      ObjectType = "Organization"
	ObjectParameter         ObjectType = "Parameter"
	ObjectParameterRule     ObjectType = "ParameterRule"
	ObjectParameterType     ObjectType = "ParameterType"
	ObjectParameterTypeRule ObjectType = "ParameterTypeRule"
	ObjectProject           ObjectType = "Project"
	ObjectPull              ObjectType = "Pull"
	ObjectPush              ObjectType = "Push"
	ObjectServiceAccount    ObjectType = "ServiceAccount"
	ObjectTag               ObjectType = "Tag"
	ObjectTask              ObjectType = "Task"
	ObjectTemplate          ObjectType = "Template"
	ObjectValue             ObjectType = "Value"
)

// RecognizedObjectTypes lists the known object types in display order.
var RecognizedObjectTypes = []ObjectType{
	ObjectAwsIntegration,
	ObjectEnvironment,
	ObjectGitHubIntegration,
	ObjectInvitation,
	ObjectMembership,
	ObjectOrganization,
	ObjectParameter,
	ObjectParameterRule,
	ObjectParameterType,
	ObjectParameterTypeRule,
	ObjectProject,
	ObjectPull,
	ObjectPush,
	ObjectServiceAccount,
	ObjectTag,
	ObjectTask,
	ObjectTemplate,
	ObjectValue,
}

// Recognized reports whether t is one of the known object types.
func (t ObjectType) Recognized() bool {
	for _, v := range RecognizedObjectTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ResolveObjectType maps user input onto the canonical spelling of a known type,
// ignoring case. "service-account" is accepted for ServiceAccount. Unknown input
// is returned unchanged.
func ResolveObjectType(input string) ObjectType {
	lower := strings.ToLower(input)
	for _, v := range RecognizedObjectTypes {
		if strings.ToLower(string(v)) == lower {
			return v
		}
	}
	if lower == "service-account" {
		return ObjectServiceAccount
	}
	return ObjectType(input)
}

// ObjectTypeNames returns the recognized object types as a comma separated list.
func ObjectTypeNames() string {
	names := make([]string, len(RecognizedObjectTypes))
	for i, v := range RecognizedObjectTypes {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// Action is what happened to the audited object. Like ObjectType the set is open.
type Action string

// Recognized actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// RecognizedActions lists the known actions.
var RecognizedActions = []Action{ActionCreate, ActionUpdate, ActionDelete}

// Recognized reports whether a is one of the known actions.
func (a Action) Recognized() bool {
	for _, v := range RecognizedActions {
		if v == a {
			return true
		}
	}
	return false
}

// ActionNames returns the recognized actions as a comma separated list.
func ActionNames() string {
	names := make([]string, len(RecognizedActions))
	for i, v := range RecognizedActions {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}

// AuditEntry is an immutable record of one audited action.
type AuditEntry struct {
	ID            int64          `json:"id"`
	EventID       string         `json:"event_id"`
	OrgID         string         `json:"-"`
	ObjectType    ObjectType     `json:"object_type"`
	ObjectID      string         `json:"object_id,omitempty"`
	ObjectName    string         `json:"object_name"`
	Action        Action         `json:"action"`
	ActorID       string         `json:"actor_id,omitempty"`
	ActorName     string         `json:"user"`
	ProjectID     string         `json:"project_id,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	ParameterID   string         `json:"parameter_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
	CreatedAt     time.Time      `json:"timestamp"`
}

// NewAuditEntry describes an entry to append. The store assigns ID and timestamp.
type NewAuditEntry struct {
	EventID       string         `json:"event_id,omitempty"`
	ObjectType    ObjectType     `json:"object_type"`
	ObjectID      string         `json:"object_id,omitempty"`
	ObjectName    string         `json:"object_name"`
	Action        Action         `json:"action"`
	ProjectID     string         `json:"project_id,omitempty"`
	EnvironmentID string         `json:"environment_id,omitempty"`
	ParameterID   string         `json:"parameter_id,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Validate checks the required fields of an entry submitted for ingest.
func (e *NewAuditEntry) Validate() error {
	if e.ObjectType == "" {
		return ErrMissingObjectType
	}
	if e.ObjectName == "" {
		return ErrMissingObjectName
	}
	if e.Action == "" {
		return ErrMissingAction
	}
	if len(e.ObjectName) > maxNameLen {
		return ErrFieldTooLong("object_name", maxNameLen)
	}
	if e.EventID != "" {
		if _, err := uuid.Parse(e.EventID); err != nil {
			return ErrInvalidEventID
		}
	}
	for _, a := range [...]struct{ field, id string }{
		{"project_id", e.ProjectID},
		{"environment_id", e.EnvironmentID},
		{"parameter_id", e.ParameterID},
	} {
		if a.id == "" {
			continue
		}
		if _, err := uuid.Parse(a.id); err != nil {
			return fmt.Errorf("%s %w", a.field, ErrInvalidAssociationID)
		}
	}
	return nil
}

// AuditFilter is the caller-supplied query criteria. Every field is optional and
// carried exactly as typed; the engine validates and resolves it.
type AuditFilter struct {
	ObjectType  string
	Name        string
	Action      string
	Username    string
	Project     string
	Environment string
	Parameter   string
	Before      string
	After       string
	// MaxEntries caps the result. Zero means no cap.
	MaxEntries int
	// PageSize overrides the store page size. Zero uses the configured default.
	PageSize int
}

// AuditQuery is a validated filter with names resolved to ids.
type AuditQuery struct {
	ObjectType    ObjectType
	NameContains  string
	Action        Action
	ActorID       string
	ProjectID     string
	EnvironmentID string
	ParameterID   string
	Before        *time.Time
	After         *time.Time
}

// AuditCursor marks the last entry of a page for keyset pagination.
type AuditCursor struct {
	CreatedAt time.Time
	ID        int64
}

// RetentionPolicy bounds how much audit history an organization keeps.
type RetentionPolicy struct {
	MaxRecords int `json:"max_records"`
	MaxDays    int `json:"max_days"`
}

// AuditSummary describes the audit log of one organization.
type AuditSummary struct {
	TotalRecords int64      `json:"total_records"`
	Earliest     *time.Time `json:"earliest,omitempty"`
	Latest       *time.Time `json:"latest,omitempty"`
	MaxRecords   int        `json:"max_records"`
	MaxDays      int        `json:"max_days"`
}

// PruneResult reports how many entries a prune pass removed.
type PruneResult struct {
	ExpiredDeleted  int `json:"expired_deleted"`
	OverflowDeleted int `json:"overflow_deleted"`
	MaxRecords      int `json:"max_records"`
	MaxDays         int `json:"max_days"`
}

// Total returns the number of entries removed for any reason.
func (r PruneResult) Total() int {
	return r.ExpiredDeleted + r.OverflowDeleted
}

// AuditResult is the outcome of a successful query. Warnings are non-fatal
// notes about the filter, such as an unrecognized object type.
type AuditResult struct {
	Entries  []AuditEntry `json:"data"`
	Warnings []string     `json:"warnings"`
}

// AuditRecord is a submitted entry ready to append: the entry itself plus the
// organization it belongs to and the actor who submitted it.
type AuditRecord struct {
	OrgID     string
	ActorID   string
	ActorName string
	NewAuditEntry
}
