package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// ServicesService covers managed external services (databases, caches, storage).
type ServicesService struct{ client *Client }

// ExternalService describes a provisioned service.
type ExternalService struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	ServiceType    ServiceType   `json:"service_type"`
	Version        *string       `json:"version,omitempty"`
	Status         ServiceStatus `json:"status"`
	ConnectionInfo *string       `json:"connection_info,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

// ServiceDetails is a service plus its configuration parameters.
type ServiceDetails struct {
	Service           ExternalService            `json:"service"`
	Parameters        []ServiceParameter         `json:"parameters"`
	CurrentParameters map[string]json.RawMessage `json:"current_parameters,omitempty"`
}

// ServiceParameter describes one configuration knob of a service type.
type ServiceParameter struct {
	Name              string   `json:"name"`
	Required          bool     `json:"required"`
	Encrypted         bool     `json:"encrypted"`
	Description       string   `json:"description"`
	DefaultValue      *string  `json:"default_value,omitempty"`
	ValidationPattern *string  `json:"validation_pattern,omitempty"`
	Choices           []string `json:"choices,omitempty"`
}

// ServiceTypeInfo lists the parameters a service type accepts.
type ServiceTypeInfo struct {
	ServiceType ServiceType        `json:"service_type"`
	Parameters  []ServiceParameter `json:"parameters"`
}

// ProjectLink ties a service to a project.
type ProjectLink struct {
	ID        int             `json:"id"`
	ProjectID int             `json:"project_id"`
	Service   ExternalService `json:"service"`
}

// CreateServiceInput is the payload for Create.
type CreateServiceInput struct {
	Name        string            `json:"name"`
	ServiceType ServiceType       `json:"service_type"`
	Version     string            `json:"version,omitempty"`
	Parameters  map[string]string `json:"parameters"`
}

// List returns every external service.
func (s *ServicesService) List(ctx context.Context) ([]ExternalService, error) {
	var out []ExternalService
	if err := s.client.do(ctx, http.MethodGet, "/external-services", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a service with its parameters.
func (s *ServicesService) Get(ctx context.Context, id int) (ServiceDetails, error) {
	var out ServiceDetails
	if err := s.client.do(ctx, http.MethodGet, pathf("/external-services/%d", id), nil, nil, &out); err != nil {
		return ServiceDetails{}, err
	}
	return out, nil
}

// Create provisions a new service.
func (s *ServicesService) Create(ctx context.Context, input CreateServiceInput) (ExternalService, error) {
	if input.Parameters == nil {
		input.Parameters = map[string]string{}
	}
	var out ExternalService
	if err := s.client.do(ctx, http.MethodPost, "/external-services", nil, input, &out); err != nil {
		return ExternalService{}, err
	}
	return out, nil
}

// Delete removes a service.
func (s *ServicesService) Delete(ctx context.Context, id int) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/external-services/%d", id), nil, nil, nil)
}

// Start boots a stopped service.
func (s *ServicesService) Start(ctx context.Context, id int) (ExternalService, error) {
	return s.transition(ctx, id, "start")
}

// Stop halts a running service.
func (s *ServicesService) Stop(ctx context.Context, id int) (ExternalService, error) {
	return s.transition(ctx, id, "stop")
}

func (s *ServicesService) transition(ctx context.Context, id int, action string) (ExternalService, error) {
	var out ExternalService
	if err := s.client.do(ctx, http.MethodPost, pathf("/external-services/%d/%s", id, action), nil, nil, &out); err != nil {
		return ExternalService{}, err
	}
	return out, nil
}

// Types lists the service types the server can provision.
func (s *ServicesService) Types(ctx context.Context) ([]ServiceType, error) {
	var out []ServiceType
	if err := s.client.do(ctx, http.MethodGet, "/external-services/types", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TypeParameters returns the parameters accepted by a service type.
func (s *ServicesService) TypeParameters(ctx context.Context, t ServiceType) (ServiceTypeInfo, error) {
	var out []ServiceParameter
	if err := s.client.do(ctx, http.MethodGet, pathf("/external-services/types/%s/parameters", string(t)), nil, nil, &out); err != nil {
		return ServiceTypeInfo{}, err
	}
	return ServiceTypeInfo{ServiceType: t, Parameters: out}, nil
}

// Projects lists the projects linked to a service.
func (s *ServicesService) Projects(ctx context.Context, id int) ([]ProjectLink, error) {
	var out []ProjectLink
	if err := s.client.do(ctx, http.MethodGet, pathf("/external-services/%d/projects", id), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Link attaches a service to a project.
func (s *ServicesService) Link(ctx context.Context, id, projectID int) (ProjectLink, error) {
	body := struct {
		ProjectID int `json:"project_id"`
	}{projectID}
	var out ProjectLink
	if err := s.client.do(ctx, http.MethodPost, pathf("/external-services/%d/projects", id), nil, body, &out); err != nil {
		return ProjectLink{}, err
	}
	return out, nil
}

// Unlink detaches a service from a project.
func (s *ServicesService) Unlink(ctx context.Context, id, projectID int) error {
	return s.client.do(ctx, http.MethodDelete, pathf("/external-services/%d/projects/%d", id, projectID), nil, nil, nil)
}
