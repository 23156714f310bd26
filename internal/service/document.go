package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/kernfi/kernfi/internal/audit"
	"github.com/kernfi/kernfi/internal/metrics"
	"github.com/kernfi/kernfi/internal/model"
	"github.com/kernfi/kernfi/internal/repository"
	"github.com/kernfi/kernfi/internal/webhook"
)

// Document service errors.
var (
	ErrDocumentNotFound       = errors.New("document not found")
	ErrFilenameRequired       = errors.New("filename is required")
	ErrFileEmpty              = errors.New("file is empty")
	ErrFileTooLarge           = errors.New("file exceeds maximum upload size")
	ErrDocumentNotProcessable = errors.New("document is not in a processable state")
)

// BlobStore persists uploaded document content under a storage key.
// Storage backends are external collaborators; a nil store records
// metadata only.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
}

// DocumentService handles document upload and lifecycle logic.
type DocumentService struct {
	repo     *repository.Repository
	store    BlobStore
	webhooks *webhook.Publisher
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  metrics.Recorder

	maxUploadSize int64
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(repo *repository.Repository, store BlobStore, webhooks *webhook.Publisher, auditor *audit.Publisher, maxUploadSize int64, logger *slog.Logger, recorder metrics.Recorder) *DocumentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &DocumentService{
		repo:          repo,
		store:         store,
		webhooks:      webhooks,
		auditor:       auditor,
		logger:        logger.With("component", "service.document"),
		metrics:       recorder,
		maxUploadSize: maxUploadSize,
	}
}

// UploadDocumentInput defines input for uploading a document. The
// handler has already validated the filename and content type against
// the upload allowlists.
type UploadDocumentInput struct {
	OrgID    string
	ActorID  string
	Filename string
	FileType string
	FileSize int64
	Content  io.Reader
}

// UploadDocument records an uploaded document and queues it for
// processing.
func (s *DocumentService) UploadDocument(ctx context.Context, input UploadDocumentInput) (*model.Document, error) {
	if input.Filename == "" {
		return nil, ErrFilenameRequired
	}
	if input.FileSize <= 0 {
		return nil, ErrFileEmpty
	}
	if s.maxUploadSize > 0 && input.FileSize > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	id := uuid.NewString()
	doc := &model.Document{
		ID:             id,
		OrganizationID: input.OrgID,
		Filename:       input.Filename,
		FileType:       input.FileType,
		FileSize:       input.FileSize,
		StoragePath:    path.Join("orgs", input.OrgID, "documents", id, input.Filename),
		Status:         model.DocumentStatusPending,
		UploadedAt:     time.Now().UTC(),
	}

	if s.store != nil && input.Content != nil {
		if err := s.store.Save(ctx, doc.StoragePath, input.Content); err != nil {
			return nil, fmt.Errorf("failed to store document content: %w", err)
		}
	}

	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		// The orphaned blob is harmless; the metadata row is the
		// source of truth.
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.metrics.IncDocumentUploaded()
	s.publishEvent(ctx, model.EventTypeDocumentUploaded, doc)
	s.recordAudit(input.OrgID, input.ActorID, model.AuditActionUpload, doc.ID, map[string]any{
		"filename":  doc.Filename,
		"file_size": doc.FileSize,
	})

	return doc, nil
}

// GetDocument retrieves a document within the organization.
func (s *DocumentService) GetDocument(ctx context.Context, orgID, id string) (*model.Document, error) {
	doc, err := s.repo.GetDocumentByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	return doc, nil
}

// ListDocumentsInput defines input for listing documents.
type ListDocumentsInput struct {
	OrgID  string
	Status string
	Cursor string
	Limit  int
}

// ListDocumentsOutput defines output for listing documents.
type ListDocumentsOutput struct {
	Documents  []*model.Document
	NextCursor string
	HasMore    bool
}

// ListDocuments retrieves a paginated list of the organization's
// documents, optionally filtered by status.
func (s *DocumentService) ListDocuments(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	status := model.DocumentStatus(input.Status)
	if input.Status != "" && !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	documents, nextCursor, err := s.repo.ListDocuments(ctx, input.OrgID, status, input.Cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Documents:  documents,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// RequestProcessing moves a pending document into the processing
// state. Only pending documents are eligible.
func (s *DocumentService) RequestProcessing(ctx context.Context, orgID, actorID, id string) (*model.Document, error) {
	doc, err := s.repo.GetDocumentByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	if !doc.CanProcess() {
		return nil, ErrDocumentNotProcessable
	}

	if err := s.repo.UpdateDocumentStatus(ctx, orgID, id, model.DocumentStatusProcessing, ""); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	doc.Status = model.DocumentStatusProcessing

	s.publishEvent(ctx, model.EventTypeDocumentProcessing, doc)
	s.recordAudit(orgID, actorID, model.AuditActionUpdate, doc.ID, map[string]any{
		"status": string(doc.Status),
	})

	return doc, nil
}

// DeleteDocument removes a document and its stored content.
func (s *DocumentService) DeleteDocument(ctx context.Context, orgID, actorID, id string) error {
	doc, err := s.repo.GetDocumentByID(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err := s.repo.DeleteDocument(ctx, orgID, id); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
			s.logger.Warn("failed to delete document content",
				"document_id", id,
				"storage_path", doc.StoragePath,
				"error", err,
			)
		}
	}

	s.recordAudit(orgID, actorID, model.AuditActionDelete, id, nil)

	return nil
}

func (s *DocumentService) publishEvent(ctx context.Context, eventType model.EventType, doc *model.Document) {
	if s.webhooks == nil {
		return
	}
	if err := s.webhooks.PublishDocumentEvent(ctx, eventType, doc); err != nil {
		s.logger.Warn("failed to publish document event",
			"event_type", eventType,
			"document_id", doc.ID,
			"error", err,
		)
	}
}

func (s *DocumentService) recordAudit(orgID, actorID string, action model.AuditAction, entityID string, detail map[string]any) {
	if s.auditor == nil || actorID == "" {
		return
	}
	s.auditor.Record(orgID, actorID, action, model.AuditEntityDocument, entityID, detail)
}
