package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for validation.
var (
	ErrMissingName       = errors.New("name is required")
	ErrMissingObjectType = errors.New("object_type is required")
	ErrMissingObjectName = errors.New("object_name is required")
	ErrMissingAction     = errors.New("action is required")
	ErrInvalidKind       = errors.New("kind must be 'user' or 'service-account'")
	ErrInvalidEventID    = errors.New("event_id must be a UUID")

	ErrInvalidAssociationID = errors.New("must be a UUID")
)

// ErrEntryRejected marks an audit entry the database refuses permanently, such
// as a value that does not fit its column. Retrying it cannot succeed.
var ErrEntryRejected = errors.New("audit entry rejected")

// ErrInvalidInput marks a rejected request body so handlers can answer 400.
var ErrInvalidInput = errors.New("invalid input")

// Sentinel errors for entity lookups.
var (
	ErrNotFound           = errors.New("not found")
	ErrAuditEntryNotFound = errors.New("audit entry not found")
)

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}

// Kinds of named association an audit filter can refer to.
const (
	KindEnvironment = "Environment"
	KindProject     = "Project"
	KindParameter   = "Parameter"
	KindUser        = "User"
)

// NotFoundError reports a filter naming an association that does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// Code returns the machine readable error code, e.g. "environment_not_found".
func (e *NotFoundError) Code() string {
	return strings.ToLower(e.Kind) + "_not_found"
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidCombinationError reports filters that cannot be used together.
type InvalidCombinationError struct {
	Message string
}

func (e *InvalidCombinationError) Error() string { return e.Message }

// ErrParameterWithoutProject is returned when a parameter filter has no project.
var ErrParameterWithoutProject = &InvalidCombinationError{
	Message: "Must specify a project when specifying a parameter",
}

// InvalidValueError reports a filter value that cannot be parsed. Flag names the
// option as the user typed it, e.g. "--before".
type InvalidValueError struct {
	Flag string
	Err  error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("Invalid '%s' value", e.Flag)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// ValidationError carries every failure found while validating a filter. The
// first one is the primary failure; the rest are extra diagnostics.
type ValidationError struct {
	Errs []error
}

// NewValidationError wraps one or more failures. It returns nil when errs is empty.
func NewValidationError(errs ...error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

func (e *ValidationError) Error() string {
	return e.Errs[0].Error()
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.Errs }

// Primary returns the failure reported first.
func (e *ValidationError) Primary() error { return e.Errs[0] }

// Diagnostics returns the messages of the failures after the primary one.
func (e *ValidationError) Diagnostics() []string {
	out := make([]string, 0, len(e.Errs)-1)
	for _, err := range e.Errs[1:] {
		out = append(out, err.Error())
	}
	return out
}
