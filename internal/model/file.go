package model

import (
	"time"
)

// File lifecycle statuses. Writes to the durable record only move a file
// forward: uploading/processing -> completed, failed or cancelled.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Storage kinds.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// UploadedFile is the durable record of an upload. The primary key is the
// transport's upload id when the protocol supplies one, otherwise a
// system-generated id, so hook retries upsert instead of duplicating rows.
type UploadedFile struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	URL         string     `json:"url"`
	Size        int64      `json:"size"`
	MimeType    string     `json:"mime_type"`
	Hash        string     `json:"hash" gorm:"index"`
	Status      string     `json:"status"`
	Storage     string     `json:"storage"`
	ProjectID   uint       `json:"project_id" gorm:"index"`
	Project     *Project   `json:"project,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}
