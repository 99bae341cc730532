package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/Wilyos/sistemas-box/internal/usecase"
)

// GCSBlobStore keeps attachments in a Cloud Storage bucket under a fixed prefix.
type GCSBlobStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

func NewGCSBlobStore(client *gcs.Client, bucket, prefix string) (*GCSBlobStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is empty")
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &GCSBlobStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSBlobStore) object(path string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path)
}

func (s *GCSBlobStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	path := s.prefix + key
	w := s.object(path).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	}
	w.Metadata = map[string]string{"uploadedAt": time.Now().UTC().Format(time.RFC3339)}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", path, err)
	}
	return path, nil
}

func (s *GCSBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	rd, err := s.object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", path, err)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// Delete treats a missing object as success.
func (s *GCSBlobStore) Delete(ctx context.Context, path string) error {
	if err := s.object(path).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return err
	}
	return nil
}

var _ usecase.BlobStore = (*GCSBlobStore)(nil)
