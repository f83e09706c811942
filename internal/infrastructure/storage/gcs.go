package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
)

// GCSStore keeps images as public objects in a bucket.
type GCSStore struct {
	client *gcs.Client
	bucket string
	folder string
}

// NewGCSStore creates the client. If credsPath is empty, ADC is used.
func NewGCSStore(ctx context.Context, bucket, folder, credsPath string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, folder: folder}, nil
}

func (s *GCSStore) Name() string { return "gcs" }

func (s *GCSStore) Upload(ctx context.Context, name, contentType string, data []byte) (*entity.UploadedImage, error) {
	objectPath := path.Join(s.folder, name)
	wc := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=31536000, immutable"
	wc.ChunkSize = 0 // single request for small files
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		_ = wc.Close()
		return nil, fmt.Errorf("gcs write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("gcs close: %w", err)
	}
	return &entity.UploadedImage{URL: PublicURL(s.bucket, objectPath), PublicID: objectPath}, nil
}

// Delete removes the object. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, publicID string) error {
	err := s.client.Bucket(s.bucket).Object(publicID).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete: %w", err)
	}
	return nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

// PublicURL builds a public URL for an object (assuming public read access)
func PublicURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}
