package model

import "time"

// DocumentStatus represents the processing state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsValid checks if the status is a recognized document status.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true once processing can no longer continue.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// Document represents an uploaded financial document.
type Document struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Filename       string         `json:"filename"`
	FileType       string         `json:"file_type,omitempty"`
	FileSize       int64          `json:"file_size,omitempty"`
	StoragePath    string         `json:"-"`
	Status         DocumentStatus `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	ProcessedAt    *time.Time     `json:"processed_at,omitempty"`
}

// CanProcess returns true if the document is eligible for processing.
// Only pending documents may enter the processing state.
func (d *Document) CanProcess() bool {
	return d.Status == DocumentStatusPending
}
