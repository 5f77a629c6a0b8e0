package client

import "context"

// EnvironmentService handles environment operations.
type EnvironmentService struct {
	c *Client
}

// List returns all environments.
func (s *EnvironmentService) List(ctx context.Context) ([]Environment, error) {
	var resp struct {
		Data []Environment `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("environments"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates an environment.
func (s *EnvironmentService) Create(ctx context.Context, req CreateNamedRequest) (*Environment, error) {
	var env Environment
	if err := s.c.post(ctx, pathJoin("environments"), req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Delete deletes an environment by name.
func (s *EnvironmentService) Delete(ctx context.Context, name string) error {
	return s.c.del(ctx, pathJoin("environments", name), nil, nil)
}

// ProjectService handles project operations.
type ProjectService struct {
	c *Client
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	var resp struct {
		Data []Project `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("projects"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates a project.
func (s *ProjectService) Create(ctx context.Context, req CreateNamedRequest) (*Project, error) {
	var p Project
	if err := s.c.post(ctx, pathJoin("projects"), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete deletes a project with its parameters and templates.
func (s *ProjectService) Delete(ctx context.Context, name string) error {
	return s.c.del(ctx, pathJoin("projects", name), nil, nil)
}

// ParameterService handles parameters and their values.
type ParameterService struct {
	c *Client
}

// List returns the parameters of a project.
func (s *ParameterService) List(ctx context.Context, project string) ([]Parameter, error) {
	var resp struct {
		Data []Parameter `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("projects", project, "parameters"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates a parameter in a project.
func (s *ParameterService) Create(ctx context.Context, project string, req CreateParameterRequest) (*Parameter, error) {
	var p Parameter
	if err := s.c.post(ctx, pathJoin("projects", project, "parameters"), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete deletes a parameter.
func (s *ParameterService) Delete(ctx context.Context, project, name string) error {
	return s.c.del(ctx, pathJoin("projects", project, "parameters", name), nil, nil)
}

// Values returns a parameter's values across environments.
func (s *ParameterService) Values(ctx context.Context, project, name string) ([]Value, error) {
	var resp struct {
		Data []Value `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("projects", project, "parameters", name, "values"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SetValue sets a parameter's value in an environment.
func (s *ParameterService) SetValue(ctx context.Context, project, name, env, value string) (*Value, error) {
	body := struct {
		Value string `json:"value"`
	}{Value: value}

	var v Value
	if err := s.c.put(ctx, pathJoin("projects", project, "parameters", name, "values", env), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteValue removes a parameter's value in an environment.
func (s *ParameterService) DeleteValue(ctx context.Context, project, name, env string) error {
	return s.c.del(ctx, pathJoin("projects", project, "parameters", name, "values", env), nil, nil)
}

// TemplateService handles template operations.
type TemplateService struct {
	c *Client
}

// List returns the templates of a project.
func (s *TemplateService) List(ctx context.Context, project string) ([]Template, error) {
	var resp struct {
		Data []Template `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("projects", project, "templates"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates a template in a project.
func (s *TemplateService) Create(ctx context.Context, project string, req CreateTemplateRequest) (*Template, error) {
	var t Template
	if err := s.c.post(ctx, pathJoin("projects", project, "templates"), req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete deletes a template.
func (s *TemplateService) Delete(ctx context.Context, project, name string) error {
	return s.c.del(ctx, pathJoin("projects", project, "templates", name), nil, nil)
}

// UserService handles users and service accounts.
type UserService struct {
	c *Client
}

// List returns the organization's users.
func (s *UserService) List(ctx context.Context) ([]User, error) {
	var resp struct {
		Data []User `json:"data"`
	}
	if err := s.c.get(ctx, pathJoin("users"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates a user and returns its API key.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*CreatedUser, error) {
	var u CreatedUser
	if err := s.c.post(ctx, pathJoin("users"), req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete deletes a user. Its API key stops working immediately.
func (s *UserService) Delete(ctx context.Context, name string) error {
	return s.c.del(ctx, pathJoin("users", name), nil, nil)
}
