package models

import "time"

const (
	maxNameLen        = 255
	maxDescriptionLen = 4096
	maxValueLen       = 64 << 10
)

// Session identifies the caller a request runs on behalf of. It is resolved
// from the API key and threaded explicitly into every query.
type Session struct {
	OrgID    string
	UserID   string
	UserName string
}

// Organization is the tenant boundary. All catalog objects and audit entries
// belong to exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User kinds.
const (
	UserKindUser           = "user"
	UserKindServiceAccount = "service-account"
)

// User is a person or service account that can authenticate with an API key.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest is the payload for creating a user.
type CreateUserRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Validate checks a CreateUserRequest and applies the default kind.
func (r *CreateUserRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if len(r.Name) > maxNameLen {
		return ErrFieldTooLong("name", maxNameLen)
	}
	if r.Kind == "" {
		r.Kind = UserKindServiceAccount
	}
	if r.Kind != UserKindUser && r.Kind != UserKindServiceAccount {
		return ErrInvalidKind
	}
	return nil
}

// CreatedUser is returned once, when a user is created. The API key is not stored.
type CreatedUser struct {
	User
	APIKey string `json:"api_key"`
}

// Environment is a named deployment target values are set for.
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

// CreateNamedRequest is the payload for creating an environment or project.
type CreateNamedRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Validate checks a CreateNamedRequest.
func (r *CreateNamedRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if len(r.Name) > maxNameLen {
		return ErrFieldTooLong("name", maxNameLen)
	}
	if len(r.Description) > maxDescriptionLen {
		return ErrFieldTooLong("description", maxDescriptionLen)
	}
	return nil
}

// Parameter is a named configuration item inside a project.
type Parameter struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Secret      bool      `json:"secret"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateParameterRequest is the payload for creating a parameter.
type CreateParameterRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Secret      bool   `json:"secret"`
}

// Validate checks a CreateParameterRequest.
func (r *CreateParameterRequest) Validate() error {
	named := CreateNamedRequest{Name: r.Name, Description: r.Description}
	return named.Validate()
}

// Value is the value of a parameter in one environment.
type Value struct {
	ID            string    `json:"id"`
	ParameterID   string    `json:"parameter_id"`
	EnvironmentID string    `json:"environment_id"`
	Value         string    `json:"value"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SetValueRequest is the payload for setting a parameter value.
type SetValueRequest struct {
	Value string `json:"value"`
}

// Validate checks a SetValueRequest.
func (r *SetValueRequest) Validate() error {
	if len(r.Value) > maxValueLen {
		return ErrFieldTooLong("value", maxValueLen)
	}
	return nil
}

// ValueName is the audit object name of a value: "parameter:environment".
func ValueName(parameter, environment string) string {
	return parameter + ":" + environment
}

// Template is a text body rendered against a project's parameters.
type Template struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTemplateRequest is the payload for creating a template.
type CreateTemplateRequest struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Validate checks a CreateTemplateRequest.
func (r *CreateTemplateRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if len(r.Name) > maxNameLen {
		return ErrFieldTooLong("name", maxNameLen)
	}
	if len(r.Body) > maxValueLen {
		return ErrFieldTooLong("body", maxValueLen)
	}
	return nil
}
