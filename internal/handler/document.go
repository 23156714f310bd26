package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kernfi/kernfi/internal/auth"
	"github.com/kernfi/kernfi/internal/handler/dto"
	"github.com/kernfi/kernfi/internal/middleware"
	"github.com/kernfi/kernfi/internal/service"
)

// DocumentHandler handles HTTP requests for document operations.
type DocumentHandler struct {
	svc           *service.DocumentService
	logger        *slog.Logger
	maxUploadSize int64
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(svc *service.DocumentService, maxUploadSize int64, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		svc:           svc,
		logger:        logger.With("handler", "document"),
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /api/v1/documents/upload (multipart form, field
// name "file").
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the maximum size")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "A file field is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if err := middleware.ValidateUploadFilename(filename); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FILENAME", err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if err := middleware.ValidateUploadContentType(contentType); err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE", err.Error())
		return
	}

	doc, err := h.svc.UploadDocument(r.Context(), service.UploadDocumentInput{
		OrgID:    auth.ScopeFilter(identity),
		ActorID:  identity.UserID,
		Filename: filename,
		FileType: contentType,
		FileSize: header.Size,
		Content:  file,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("document_uploaded",
		"document_id", doc.ID,
		"org_id", doc.OrganizationID,
		"file_size", doc.FileSize,
	)

	writeJSON(w, http.StatusCreated, doc)
}

// Get handles GET /api/v1/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.svc.GetDocument(r.Context(), auth.ScopeFilter(identity), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// List handles GET /api/v1/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	result, err := h.svc.ListDocuments(r.Context(), service.ListDocumentsInput{
		OrgID:  auth.ScopeFilter(identity),
		Status: query.Get("status"),
		Cursor: query.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DocumentListResponse{
		Documents: result.Documents,
		Pagination: dto.Pagination{
			NextCursor: result.NextCursor,
			HasMore:    result.HasMore,
		},
	})
}

// Process handles POST /api/v1/documents/{id}/process.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.svc.RequestProcessing(r.Context(), auth.ScopeFilter(identity), identity.UserID, id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("document_processing_requested", "document_id", doc.ID)

	writeJSON(w, http.StatusAccepted, doc)
}

// Delete handles DELETE /api/v1/documents/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.svc.DeleteDocument(r.Context(), auth.ScopeFilter(identity), identity.UserID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("document_deleted", "document_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to HTTP responses.
func (h *DocumentHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Document not found")
	case errors.Is(err, service.ErrFilenameRequired):
		writeError(w, http.StatusBadRequest, "INVALID_FILENAME", "Filename is required")
	case errors.Is(err, service.ErrFileEmpty):
		writeError(w, http.StatusBadRequest, "EMPTY_FILE", "Uploaded file is empty")
	case errors.Is(err, service.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Upload exceeds the maximum size")
	case errors.Is(err, service.ErrDocumentNotProcessable):
		writeError(w, http.StatusConflict, "NOT_PROCESSABLE", "Only pending documents can be processed")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Unknown document status")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
