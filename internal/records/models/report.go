package models

import (
	"strings"
	"time"

	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
)

// Report is one entry in a patient's record list. The content reference is an
// opaque pointer into an external blob store; the core only stores and
// compares it. Reports are append-only: never mutated, never removed.
type Report struct {
	ContentRef  string       `json:"content_ref"`
	Description string       `json:"description"`
	Uploader    id.Principal `json:"uploader"`
	UploadedAt  time.Time    `json:"uploaded_at"`
}

// NewReport validates inputs before anything touches storage.
func NewReport(contentRef, description string, uploader id.Principal, now time.Time) (Report, error) {
	if strings.TrimSpace(contentRef) == "" {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "content reference is required")
	}
	if strings.TrimSpace(description) == "" {
		return Report{}, dErrors.New(dErrors.CodeInvalidInput, "description is required")
	}
	return Report{
		ContentRef:  contentRef,
		Description: strings.TrimSpace(description),
		Uploader:    uploader,
		UploadedAt:  now,
	}, nil
}
