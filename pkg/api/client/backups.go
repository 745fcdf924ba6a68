package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// BackupsService covers backup runs.
type BackupsService struct{ client *Client }

// Backup is a single backup run.
type Backup struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	BackupID        string          `json:"backup_id"`
	ScheduleID      *int            `json:"schedule_id,omitempty"`
	BackupType      string          `json:"backup_type"`
	State           BackupState     `json:"state"`
	StartedAt       Millis          `json:"started_at"`
	CompletedAt     *Millis         `json:"completed_at,omitempty"`
	SizeBytes       int64           `json:"size_bytes"`
	FileCount       *int            `json:"file_count,omitempty"`
	S3SourceID      int             `json:"s3_source_id"`
	S3Location      string          `json:"s3_location"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	Checksum        *string         `json:"checksum,omitempty"`
	CompressionType string          `json:"compression_type"`
	CreatedBy       int             `json:"created_by"`
	ExpiresAt       *Millis         `json:"expires_at,omitempty"`
	Tags            []string        `json:"tags"`
}

// Get fetches a backup run.
func (s *BackupsService) Get(ctx context.Context, id int) (Backup, error) {
	var out Backup
	if err := s.client.do(ctx, http.MethodGet, pathf("/backups/%d", id), nil, nil, &out); err != nil {
		return Backup{}, err
	}
	return out, nil
}

// Run starts a backup of an S3 source. An empty type means "full".
func (s *BackupsService) Run(ctx context.Context, sourceID int, backupType string) (Backup, error) {
	if backupType == "" {
		backupType = "full"
	}
	body := struct {
		BackupType string `json:"backup_type"`
	}{backupType}
	var out Backup
	if err := s.client.do(ctx, http.MethodPost, pathf("/backups/s3-sources/%d/run", sourceID), nil, body, &out); err != nil {
		return Backup{}, err
	}
	return out, nil
}
