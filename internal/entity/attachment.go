package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxAttachmentBytes = 5 << 20
	DocumentMimeType          = "application/pdf"
)

type Attachment struct {
	Reference    string    `json:"reference"`
	StoredPath   string    `json:"stored_path"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	StoredAt     time.Time `json:"stored_at"`
}

// AllowedMimeType accepts image/* and the single document type.
func AllowedMimeType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return strings.HasPrefix(mime, "image/") || mime == DocumentMimeType
}

// ValidateAttachment checks reference, type and size. It never touches storage.
func ValidateAttachment(reference, mime string, size, maxBytes int64) error {
	if strings.TrimSpace(reference) == "" {
		return &UploadRejected{Reason: UploadMissingReference}
	}
	return ValidateAttachmentFile(mime, size, maxBytes)
}

// ValidateAttachmentFile checks type and size only.
func ValidateAttachmentFile(mime string, size, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	if !AllowedMimeType(mime) {
		return &UploadRejected{Reason: UploadInvalidType, Detail: mime}
	}
	if size > maxBytes {
		return &UploadRejected{Reason: UploadTooLarge, Detail: fmt.Sprintf("%d bytes exceeds limit of %d", size, maxBytes)}
	}
	return nil
}
