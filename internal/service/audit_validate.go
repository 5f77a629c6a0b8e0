package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paramkeep/paramkeep/internal/models"
)

// Warning texts returned alongside successful queries.
var (
	warnUnknownType   = "The specified --type is not one of the recognized values: " + models.ObjectTypeNames()
	warnUnknownAction = "The specified --action is not one of the recognized values: " + models.ActionNames()
)

// resolution holds a filter together with everything looked up or parsed for it.
// An empty id for a supplied name means the name did not resolve.
type resolution struct {
	filter models.AuditFilter

	environmentID string
	projectID     string
	parameterID   string
	userID        string

	before *time.Time
	after  *time.Time
}

// auditValidator inspects a resolution and returns the failures it finds.
type auditValidator func(r *resolution) []error

// auditValidators run in order; the first one that reports anything ends
// validation. Only the time range check reports more than one failure.
var auditValidators = []auditValidator{
	validateEnvironment,
	validateProject,
	validateParameterScope,
	validateParameter,
	validateUser,
	validateTimeRange,
	validateMaxEntries,
}

func validateEnvironment(r *resolution) []error {
	if r.filter.Environment != "" && r.environmentID == "" {
		return []error{&models.NotFoundError{Kind: models.KindEnvironment, Name: r.filter.Environment}}
	}
	return nil
}

func validateProject(r *resolution) []error {
	if r.filter.Project != "" && r.projectID == "" {
		return []error{&models.NotFoundError{Kind: models.KindProject, Name: r.filter.Project}}
	}
	return nil
}

func validateParameterScope(r *resolution) []error {
	if r.filter.Parameter != "" && r.filter.Project == "" {
		return []error{models.ErrParameterWithoutProject}
	}
	return nil
}

func validateParameter(r *resolution) []error {
	if r.filter.Parameter != "" && r.parameterID == "" {
		return []error{&models.NotFoundError{Kind: models.KindParameter, Name: r.filter.Parameter}}
	}
	return nil
}

func validateUser(r *resolution) []error {
	if r.filter.Username != "" && r.userID == "" {
		return []error{&models.NotFoundError{Kind: models.KindUser, Name: r.filter.Username}}
	}
	return nil
}

// validateTimeRange parses both bounds and reports every one that fails.
func validateTimeRange(r *resolution) []error {
	var errs []error

	if r.filter.Before != "" {
		t, err := ParseTimestamp(r.filter.Before)
		if err != nil {
			errs = append(errs, &models.InvalidValueError{Flag: "--before", Err: err})
		} else {
			r.before = &t
		}
	}

	if r.filter.After != "" {
		t, err := ParseTimestamp(r.filter.After)
		if err != nil {
			errs = append(errs, &models.InvalidValueError{Flag: "--after", Err: err})
		} else {
			r.after = &t
		}
	}

	return errs
}

func validateMaxEntries(r *resolution) []error {
	if r.filter.MaxEntries < 0 {
		return []error{&models.InvalidValueError{Flag: "--max", Err: fmt.Errorf("negative cap %d", r.filter.MaxEntries)}}
	}
	return nil
}

// validate runs the validators in order and wraps the first failures found.
func (r *resolution) validate() error {
	for _, v := range auditValidators {
		if errs := v(r); len(errs) > 0 {
			return models.NewValidationError(errs...)
		}
	}
	return nil
}

// query converts a validated resolution into a store query and collects warnings.
func (r *resolution) query() (models.AuditQuery, []string) {
	warnings := []string{}

	q := models.AuditQuery{
		NameContains:  r.filter.Name,
		ActorID:       r.userID,
		ProjectID:     r.projectID,
		EnvironmentID: r.environmentID,
		ParameterID:   r.parameterID,
		Before:        r.before,
		After:         r.after,
	}

	if r.filter.ObjectType != "" {
		q.ObjectType = models.ResolveObjectType(r.filter.ObjectType)
		if !q.ObjectType.Recognized() {
			warnings = append(warnings, warnUnknownType)
		}
	}

	if r.filter.Action != "" {
		q.Action = models.Action(r.filter.Action)
		if !q.Action.Recognized() {
			warnings = append(warnings, warnUnknownAction)
		}
	}

	return q, warnings
}

// resolveNames looks up every named association in the filter. Environment,
// project and user lookups run concurrently; the parameter lookup needs the
// project id and runs afterwards. Names that do not exist leave their id empty;
// any other lookup failure aborts.
func resolveNames(ctx context.Context, resolver NameResolver, orgID string, f models.AuditFilter) (*resolution, error) {
	r := &resolution{filter: f}

	g, gctx := errgroup.WithContext(ctx)

	if f.Environment != "" {
		g.Go(func() error {
			return keepFound(&r.environmentID)(resolver.EnvironmentID(gctx, orgID, f.Environment))
		})
	}
	if f.Project != "" {
		g.Go(func() error {
			return keepFound(&r.projectID)(resolver.ProjectID(gctx, orgID, f.Project))
		})
	}
	if f.Username != "" {
		g.Go(func() error {
			return keepFound(&r.userID)(resolver.UserID(gctx, orgID, f.Username))
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if f.Parameter != "" && r.projectID != "" {
		err := keepFound(&r.parameterID)(resolver.ParameterID(ctx, orgID, r.projectID, f.Parameter))
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

// keepFound stores a resolved id into dst, treating not-found as an empty id.
func keepFound(dst *string) func(string, error) error {
	return func(id string, err error) error {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolving names: %w", err)
		}
		*dst = id
		return nil
	}
}
