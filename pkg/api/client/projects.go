package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// UsersService covers the authenticated user.
type UsersService struct{ client *Client }

// User reflects API user payloads.
type User struct {
	ID         int     `json:"id"`
	Username   string  `json:"username"`
	Name       string  `json:"name"`
	Email      *string `json:"email,omitempty"`
	AvatarURL  string  `json:"avatar_url"`
	MFAEnabled bool    `json:"mfa_enabled"`
}

// Me returns the user the token belongs to.
func (s *UsersService) Me(ctx context.Context) (User, error) {
	var user User
	if err := s.client.do(ctx, http.MethodGet, "/user/me", nil, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// ProjectsService covers /projects.
type ProjectsService struct{ client *Client }

// Project describes a deployable unit.
type Project struct {
	ID                        int     `json:"id"`
	Slug                      string  `json:"slug"`
	Name                      string  `json:"name"`
	RepoName                  *string `json:"repo_name,omitempty"`
	RepoOwner                 *string `json:"repo_owner,omitempty"`
	Directory                 string  `json:"directory"`
	MainBranch                string  `json:"main_branch"`
	Preset                    *string `json:"preset,omitempty"`
	CreatedAt                 Millis  `json:"created_at"`
	UpdatedAt                 Millis  `json:"updated_at"`
	LastDeployment            *Millis `json:"last_deployment,omitempty"`
	EnablePreviewEnvironments bool    `json:"enable_preview_environments"`
	AttackMode                bool    `json:"attack_mode"`
}

// ProjectList is one page of projects.
type ProjectList struct {
	Projects []Project `json:"projects"`
	Total    int64     `json:"total"`
	Page     int64     `json:"page"`
	PerPage  int64     `json:"per_page"`
}

// List returns a page of projects.
func (s *ProjectsService) List(ctx context.Context, page Page) (ProjectList, error) {
	var list ProjectList
	if err := s.client.do(ctx, http.MethodGet, "/projects", page.values(), nil, &list); err != nil {
		return ProjectList{}, err
	}
	return list, nil
}

// Get fetches a project by numeric id.
func (s *ProjectsService) Get(ctx context.Context, id int) (Project, error) {
	var project Project
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d", id), nil, nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// GetBySlug fetches a project by slug.
func (s *ProjectsService) GetBySlug(ctx context.Context, slug string) (Project, error) {
	var project Project
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/by-slug/%s", slug), nil, nil, &project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// Resolve accepts a slug or numeric id. The slug is tried first; numeric
// input falls back to the id lookup when no project carries it as a slug.
func (s *ProjectsService) Resolve(ctx context.Context, ref string) (Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Project{}, fmt.Errorf("project reference is empty")
	}
	project, err := s.GetBySlug(ctx, ref)
	if err == nil {
		return project, nil
	}
	id, convErr := strconv.Atoi(ref)
	if convErr != nil || !IsNotFound(err) {
		return Project{}, err
	}
	return s.Get(ctx, id)
}
