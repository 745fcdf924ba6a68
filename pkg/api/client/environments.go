package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// EnvironmentsService covers /projects/{id}/environments.
type EnvironmentsService struct{ client *Client }

// Environment is a deploy target inside a project.
type Environment struct {
	ID                  int     `json:"id"`
	ProjectID           int     `json:"project_id"`
	Name                string  `json:"name"`
	Slug                string  `json:"slug"`
	MainURL             string  `json:"main_url"`
	CurrentDeploymentID *int    `json:"current_deployment_id,omitempty"`
	CreatedAt           Millis  `json:"created_at"`
	UpdatedAt           Millis  `json:"updated_at"`
	Branch              *string `json:"branch,omitempty"`
}

// CreateEnvironmentInput is the payload for Create.
type CreateEnvironmentInput struct {
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// List returns the environments of a project.
func (s *EnvironmentsService) List(ctx context.Context, projectID int) ([]Environment, error) {
	var envs []Environment
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/environments", projectID), nil, nil, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// Get fetches one environment by id or slug.
func (s *EnvironmentsService) Get(ctx context.Context, projectID int, idOrSlug string) (Environment, error) {
	var env Environment
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/environments/%s", projectID, idOrSlug), nil, nil, &env); err != nil {
		return Environment{}, err
	}
	return env, nil
}

// Create adds an environment to a project.
func (s *EnvironmentsService) Create(ctx context.Context, projectID int, input CreateEnvironmentInput) (Environment, error) {
	var env Environment
	if err := s.client.do(ctx, http.MethodPost, pathf("/projects/%d/environments", projectID), nil, input, &env); err != nil {
		return Environment{}, err
	}
	return env, nil
}

// Delete removes an environment by id or slug.
func (s *EnvironmentsService) Delete(ctx context.Context, projectID int, idOrSlug string) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/projects/%d/environments/%s", projectID, idOrSlug), nil, nil, nil)
}

// EnvVarsService covers /projects/{id}/env-vars.
type EnvVarsService struct{ client *Client }

// EnvVarEnvironment is an environment an env var is attached to.
type EnvVarEnvironment struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	MainURL             string `json:"main_url"`
	CurrentDeploymentID *int   `json:"current_deployment_id,omitempty"`
}

// EnvVar is a project environment variable.
type EnvVar struct {
	ID           int                 `json:"id"`
	Key          string              `json:"key"`
	Value        string              `json:"value"`
	CreatedAt    Millis              `json:"created_at"`
	UpdatedAt    Millis              `json:"updated_at"`
	Environments []EnvVarEnvironment `json:"environments"`
}

// AppliesTo reports whether the variable is attached to environment id.
func (v EnvVar) AppliesTo(environmentID int) bool {
	for _, env := range v.Environments {
		if env.ID == environmentID {
			return true
		}
	}
	return false
}

// EnvVarInput is the payload for Create and Update.
type EnvVarInput struct {
	Key            string `json:"key"`
	Value          string `json:"value"`
	EnvironmentIDs []int  `json:"environment_ids"`
}

// List returns every variable of a project.
func (s *EnvVarsService) List(ctx context.Context, projectID int) ([]EnvVar, error) {
	var vars []EnvVar
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/env-vars", projectID), nil, nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// Create adds a variable.
func (s *EnvVarsService) Create(ctx context.Context, projectID int, input EnvVarInput) (EnvVar, error) {
	var out EnvVar
	if err := s.client.do(ctx, http.MethodPost, pathf("/projects/%d/env-vars", projectID), nil, input, &out); err != nil {
		return EnvVar{}, err
	}
	return out, nil
}

// Update replaces a variable's value and environments.
func (s *EnvVarsService) Update(ctx context.Context, projectID, varID int, input EnvVarInput) (EnvVar, error) {
	var out EnvVar
	if err := s.client.do(ctx, http.MethodPut, pathf("/projects/%d/env-vars/%d", projectID, varID), nil, input, &out); err != nil {
		return EnvVar{}, err
	}
	return out, nil
}

// Delete removes a variable.
func (s *EnvVarsService) Delete(ctx context.Context, projectID, varID int) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/projects/%d/env-vars/%d", projectID, varID), nil, nil, nil)
}

// Value fetches the plain value of key, optionally scoped to one environment.
func (s *EnvVarsService) Value(ctx context.Context, projectID int, key string, environmentID int) (string, error) {
	var query url.Values
	if environmentID > 0 {
		query = url.Values{"environment_id": {strconv.Itoa(environmentID)}}
	}
	var out struct {
		Value string `json:"value"`
	}
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/env-vars/%s/value", projectID, key), query, nil, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}
