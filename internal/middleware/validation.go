// Package middleware provides HTTP middleware for the bookkeeping API.
package middleware

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Validation limits.
const (
	// MaxFilenameLength is the maximum length for uploaded filenames.
	MaxFilenameLength = 255

	// MaxDescriptionLength is the maximum length for transaction
	// descriptions and notes.
	MaxDescriptionLength = 2048

	// MaxWebhookURLLength is the maximum length for webhook URLs.
	MaxWebhookURLLength = 1024

	// MaxTagLength is the maximum length for a single transaction tag.
	MaxTagLength = 64

	// MaxTagCount is the maximum number of tags on a transaction.
	MaxTagCount = 20
)

// Validation errors.
var (
	ErrFilenameTooLong     = errors.New("filename exceeds maximum length")
	ErrFilenameInvalid     = errors.New("filename contains invalid characters")
	ErrFileTypeUnsupported = errors.New("file type is not supported")
	ErrDescriptionTooLong  = errors.New("description exceeds maximum length")
	ErrWebhookURLTooLong   = errors.New("webhook URL exceeds maximum length")
	ErrTagInvalid          = errors.New("tag is empty or exceeds maximum length")
	ErrTooManyTags         = errors.New("too many tags")
	ErrDateRangeInvalid    = errors.New("date range start is after end")
)

// SupportedUploadTypes maps accepted upload content types to their
// canonical extensions. Documents outside this set are rejected before
// any bytes are stored.
var SupportedUploadTypes = map[string]string{
	"application/pdf": ".pdf",
	"text/csv":        ".csv",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// ValidateUploadFilename validates an uploaded document's filename.
func ValidateUploadFilename(name string) error {
	if name == "" || len(name) > MaxFilenameLength {
		return ErrFilenameTooLong
	}

	// Reject path separators and traversal; the stored name is always
	// the base name.
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return ErrFilenameInvalid
	}

	for _, r := range name {
		if r < 0x20 || r > unicode.MaxASCII {
			return ErrFilenameInvalid
		}
	}

	return nil
}

// ValidateUploadContentType checks an upload's content type against the
// allowlist. Parameters after a semicolon are ignored.
func ValidateUploadContentType(contentType string) error {
	base := contentType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	if _, ok := SupportedUploadTypes[base]; !ok {
		return ErrFileTypeUnsupported
	}
	return nil
}

// ValidateDescription bounds free-text fields.
func ValidateDescription(s string) error {
	if len(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// ValidateTags bounds the tag list on a transaction.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return ErrTooManyTags
	}
	for _, tag := range tags {
		if tag == "" || len(tag) > MaxTagLength {
			return ErrTagInvalid
		}
	}
	return nil
}

// ValidateWebhookURL validates a webhook target URL length.
// Scheme and host checks are done in webhook.ValidateTargetURL.
func ValidateWebhookURL(url string) error {
	if len(url) > MaxWebhookURLLength {
		return ErrWebhookURLTooLong
	}
	return nil
}

// ValidateDateRange checks optional report bounds.
func ValidateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return ErrDateRangeInvalid
	}
	return nil
}
