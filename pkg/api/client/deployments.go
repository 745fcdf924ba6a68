package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DeploymentsService covers deployments and their jobs.
type DeploymentsService struct{ client *Client }

// DeploymentEnvironment is the environment summary embedded in a deployment.
type DeploymentEnvironment struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Slug    string   `json:"slug"`
	Domains []string `json:"domains"`
}

// Deployment mirrors the API deployment payload.
type Deployment struct {
	ID                 int                   `json:"id"`
	ProjectID          int                   `json:"project_id"`
	EnvironmentID      int                   `json:"environment_id"`
	Environment        DeploymentEnvironment `json:"environment"`
	Status             DeploymentStatus      `json:"status"`
	URL                string                `json:"url"`
	CommitHash         *string               `json:"commit_hash,omitempty"`
	CommitMessage      *string               `json:"commit_message,omitempty"`
	CommitAuthor       *string               `json:"commit_author,omitempty"`
	Branch             *string               `json:"branch,omitempty"`
	Tag                *string               `json:"tag,omitempty"`
	CreatedAt          Millis                `json:"created_at"`
	StartedAt          *Millis               `json:"started_at,omitempty"`
	FinishedAt         *Millis               `json:"finished_at,omitempty"`
	ScreenshotLocation *string               `json:"screenshot_location,omitempty"`
	IsCurrent          bool                  `json:"is_current"`
	CancelledReason    *string               `json:"cancelled_reason,omitempty"`
}

// HasScreenshot reports whether the post-deploy screenshot is available.
func (d Deployment) HasScreenshot() bool {
	return d.ScreenshotLocation != nil && *d.ScreenshotLocation != ""
}

// DeploymentList is one page of deployments.
type DeploymentList struct {
	Deployments []Deployment `json:"deployments"`
	Total       int64        `json:"total"`
	Page        int64        `json:"page"`
	PerPage     int64        `json:"per_page"`
}

// DeploymentJob is one step of a deployment pipeline.
type DeploymentJob struct {
	ID             int       `json:"id"`
	DeploymentID   int       `json:"deployment_id"`
	JobID          string    `json:"job_id"`
	JobType        string    `json:"job_type"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Status         JobStatus `json:"status"`
	CreatedAt      Millis    `json:"created_at"`
	UpdatedAt      Millis    `json:"updated_at"`
	StartedAt      *Millis   `json:"started_at,omitempty"`
	FinishedAt     *Millis   `json:"finished_at,omitempty"`
	LogID          string    `json:"log_id"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	ExecutionOrder *int      `json:"execution_order,omitempty"`
}

// StateChange is the acknowledgement of pause, resume and cancel.
type StateChange struct {
	ID      int    `json:"id"`
	State   string `json:"state"`
	Message string `json:"message"`
}

// DeployImageInput is the payload for DeployImage.
type DeployImageInput struct {
	ImageRef string          `json:"image_ref"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DeployImageResult is the acknowledgement of DeployImage. It carries the
// pipeline state under "state" and an RFC 3339 creation time, unlike
// Deployment; fetch the deployment by ID for the full view.
type DeployImageResult struct {
	ID            int              `json:"id"`
	ProjectID     int              `json:"project_id"`
	EnvironmentID int              `json:"environment_id"`
	Slug          string           `json:"slug"`
	State         DeploymentStatus `json:"state"`
	SourceType    string           `json:"source_type"`
	CreatedAt     time.Time        `json:"created_at"`
}

// List returns a page of deployments for a project.
func (s *DeploymentsService) List(ctx context.Context, projectID int, page Page) (DeploymentList, error) {
	var list DeploymentList
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/deployments", projectID), page.values(), nil, &list); err != nil {
		return DeploymentList{}, err
	}
	return list, nil
}

// Get fetches one deployment.
func (s *DeploymentsService) Get(ctx context.Context, projectID, deploymentID int) (Deployment, error) {
	var dep Deployment
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/deployments/%d", projectID, deploymentID), nil, nil, &dep); err != nil {
		return Deployment{}, err
	}
	return dep, nil
}

// Last returns the most recent deployment of a project.
func (s *DeploymentsService) Last(ctx context.Context, projectID int) (Deployment, error) {
	var dep Deployment
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/last-deployment", projectID), nil, nil, &dep); err != nil {
		return Deployment{}, err
	}
	return dep, nil
}

// Jobs lists the pipeline jobs of a deployment.
func (s *DeploymentsService) Jobs(ctx context.Context, projectID, deploymentID int) ([]DeploymentJob, error) {
	var out struct {
		Jobs []DeploymentJob `json:"jobs"`
	}
	if err := s.client.do(ctx, http.MethodGet, pathf("/projects/%d/deployments/%d/jobs", projectID, deploymentID), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// JobLogs returns the full log of a finished or running job.
func (s *DeploymentsService) JobLogs(ctx context.Context, projectID, deploymentID int, jobID string) (string, error) {
	return s.client.doText(ctx, http.MethodGet, pathf("/projects/%d/deployments/%d/jobs/%s/logs", projectID, deploymentID, jobID))
}

// Pause stops traffic to a deployment without tearing it down.
func (s *DeploymentsService) Pause(ctx context.Context, projectID, deploymentID int) (StateChange, error) {
	return s.stateChange(ctx, projectID, deploymentID, "pause")
}

// Resume restarts a paused deployment.
func (s *DeploymentsService) Resume(ctx context.Context, projectID, deploymentID int) (StateChange, error) {
	return s.stateChange(ctx, projectID, deploymentID, "resume")
}

// Cancel aborts a running deployment.
func (s *DeploymentsService) Cancel(ctx context.Context, projectID, deploymentID int) (StateChange, error) {
	return s.stateChange(ctx, projectID, deploymentID, "cancel")
}

func (s *DeploymentsService) stateChange(ctx context.Context, projectID, deploymentID int, action string) (StateChange, error) {
	var out StateChange
	if err := s.client.do(ctx, http.MethodPost, pathf("/projects/%d/deployments/%d/%s", projectID, deploymentID, action), nil, nil, &out); err != nil {
		return StateChange{}, err
	}
	return out, nil
}

// Rollback promotes an earlier deployment back to current.
func (s *DeploymentsService) Rollback(ctx context.Context, projectID, deploymentID int) (Deployment, error) {
	var dep Deployment
	if err := s.client.do(ctx, http.MethodPost, pathf("/projects/%d/deployments/%d/rollback", projectID, deploymentID), nil, nil, &dep); err != nil {
		return Deployment{}, err
	}
	return dep, nil
}

// DeployImage starts a deployment of a pre-built container image.
func (s *DeploymentsService) DeployImage(ctx context.Context, projectID, environmentID int, input DeployImageInput) (DeployImageResult, error) {
	var out DeployImageResult
	if err := s.client.do(ctx, http.MethodPost, pathf("/projects/%d/environments/%d/deploy/image", projectID, environmentID), nil, input, &out); err != nil {
		return DeployImageResult{}, err
	}
	return out, nil
}
