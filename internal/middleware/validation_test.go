package middleware

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateUploadFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  error
	}{
		{
			name:     "valid pdf name",
			filename: "statement-jan.pdf",
			wantErr:  nil,
		},
		{
			name:     "valid csv name",
			filename: "export_2026.csv",
			wantErr:  nil,
		},
		{
			name:     "empty",
			filename: "",
			wantErr:  ErrFilenameTooLong,
		},
		{
			name:     "too long",
			filename: strings.Repeat("a", MaxFilenameLength+1),
			wantErr:  ErrFilenameTooLong,
		},
		{
			name:     "path traversal",
			filename: "../../etc/passwd",
			wantErr:  ErrFilenameInvalid,
		},
		{
			name:     "embedded slash",
			filename: "uploads/receipt.pdf",
			wantErr:  ErrFilenameInvalid,
		},
		{
			name:     "control character",
			filename: "bad\x00name.pdf",
			wantErr:  ErrFilenameInvalid,
		},
		{
			name:     "non-ascii",
			filename: "квитанция.pdf",
			wantErr:  ErrFilenameInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadFilename(tt.filename)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUploadFilename(%q) = %v, want %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUploadContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		wantErr     error
	}{
		{"pdf", "application/pdf", nil},
		{"csv", "text/csv", nil},
		{"png", "image/png", nil},
		{"jpeg", "image/jpeg", nil},
		{"with charset parameter", "text/csv; charset=utf-8", nil},
		{"uppercase", "APPLICATION/PDF", nil},
		{"executable", "application/x-msdownload", ErrFileTypeUnsupported},
		{"html", "text/html", ErrFileTypeUnsupported},
		{"empty", "", ErrFileTypeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUploadContentType(tt.contentType)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUploadContentType(%q) = %v, want %v", tt.contentType, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTags(t *testing.T) {
	tooMany := make([]string, MaxTagCount+1)
	for i := range tooMany {
		tooMany[i] = "tag"
	}

	tests := []struct {
		name    string
		tags    []string
		wantErr error
	}{
		{"nil", nil, nil},
		{"few tags", []string{"travel", "deductible"}, nil},
		{"empty tag", []string{"travel", ""}, ErrTagInvalid},
		{"oversized tag", []string{strings.Repeat("x", MaxTagLength+1)}, ErrTagInvalid},
		{"too many", tooMany, ErrTooManyTags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTags(tt.tags)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTags() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDateRange(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    *time.Time
		to      *time.Time
		wantErr error
	}{
		{"both nil", nil, nil, nil},
		{"from only", &early, nil, nil},
		{"to only", nil, &late, nil},
		{"ordered", &early, &late, nil},
		{"same day", &early, &early, nil},
		{"inverted", &late, &early, ErrDateRangeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDateRange(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDateRange() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription("coffee with client"); err != nil {
		t.Errorf("valid description rejected: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("a", MaxDescriptionLength+1)); !errors.Is(err, ErrDescriptionTooLong) {
		t.Errorf("expected ErrDescriptionTooLong, got %v", err)
	}
}
