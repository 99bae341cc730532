package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
)

var (
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,80}$`)
	extPattern       = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)
)

// UploadFile is an incoming attachment before it is stored.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type UploadAttachment struct {
	blobs    BlobStore
	index    AttachmentIndex
	maxBytes int64
	now      func() time.Time
}

func NewUploadAttachment(blobs BlobStore, index AttachmentIndex, maxBytes int64) *UploadAttachment {
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxAttachmentBytes
	}
	return &UploadAttachment{blobs: blobs, index: index, maxBytes: maxBytes, now: time.Now}
}

// Validate runs every check that does not need I/O.
func (u *UploadAttachment) Validate(reference string, f *UploadFile) error {
	if strings.TrimSpace(reference) == "" {
		return &domain.UploadRejected{Reason: domain.UploadMissingReference}
	}
	if !referencePattern.MatchString(reference) {
		return domain.NewValidationError("reference", "invalid characters")
	}
	return u.ValidateFile(f)
}

func (u *UploadAttachment) ValidateFile(f *UploadFile) error {
	if f == nil || f.Content == nil {
		return &domain.UploadRejected{Reason: domain.UploadMissingFile}
	}
	return domain.ValidateAttachmentFile(f.ContentType, f.Size, u.maxBytes)
}

// StorageKey is <reference>-<unixmillis><ext>.
func StorageKey(reference, filename string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s-%d%s", reference, at.UnixMilli(), ext)
}

// Upload validates, stores the blob and indexes it under the reference.
// A later upload for the same reference replaces the earlier one.
func (u *UploadAttachment) Upload(ctx context.Context, reference string, f *UploadFile) (domain.Attachment, error) {
	if err := u.Validate(reference, f); err != nil {
		return domain.Attachment{}, err
	}

	now := u.now()
	key := StorageKey(reference, f.Filename, now)
	// guard against a client lying about the size
	limited := io.LimitReader(f.Content, u.maxBytes+1)
	counter := &countingReader{r: limited}

	path, err := u.blobs.Put(ctx, key, f.ContentType, counter)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	if counter.n > u.maxBytes {
		_ = u.blobs.Delete(ctx, path)
		return domain.Attachment{}, &domain.UploadRejected{Reason: domain.UploadTooLarge}
	}

	if prev, ok, _ := u.index.Get(ctx, reference); ok && prev.StoredPath != path {
		_ = u.blobs.Delete(ctx, prev.StoredPath)
	}

	att := domain.Attachment{
		Reference:    reference,
		StoredPath:   path,
		OriginalName: filepath.Base(f.Filename),
		MimeType:     f.ContentType,
		Size:         counter.n,
		StoredAt:     now.UTC(),
	}
	if err := u.index.Put(ctx, att); err != nil {
		_ = u.blobs.Delete(ctx, path)
		return domain.Attachment{}, fmt.Errorf("index attachment: %w", err)
	}
	return att, nil
}

// Load returns the attachment stored for reference, or nil when there is none.
func (u *UploadAttachment) Load(ctx context.Context, reference string) (*AttachmentContent, error) {
	att, ok, err := u.index.Get(ctx, reference)
	if err != nil || !ok {
		return nil, err
	}
	return u.Read(ctx, att)
}

// Read fetches the blob of a known attachment, e.g. one recorded in the ledger.
func (u *UploadAttachment) Read(ctx context.Context, att domain.Attachment) (*AttachmentContent, error) {
	data, err := u.blobs.Get(ctx, att.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", att.StoredPath, err)
	}
	return &AttachmentContent{Attachment: att, Data: data}, nil
}

// Release deletes a consumed attachment whether or not its index entry survives.
func (u *UploadAttachment) Release(ctx context.Context, att domain.Attachment) {
	if err := u.blobs.Delete(ctx, att.StoredPath); err != nil {
		logging.FromCtx(ctx).Warn("attachment release failed", "path", att.StoredPath, "err", err)
	}
	_ = u.index.Delete(ctx, att.Reference)
}

// Discard removes both the blob and its index entry.
func (u *UploadAttachment) Discard(ctx context.Context, reference string) error {
	att, ok, err := u.index.Get(ctx, reference)
	if err != nil || !ok {
		return err
	}
	var errs []error
	if err := u.blobs.Delete(ctx, att.StoredPath); err != nil {
		errs = append(errs, err)
	}
	if err := u.index.Delete(ctx, reference); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logging.FromCtx(ctx).Warn("attachment discard incomplete", "reference", reference, "err", errors.Join(errs...))
	}
	return errors.Join(errs...)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
