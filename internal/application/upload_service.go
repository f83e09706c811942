package application

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/avif"}

var (
	ErrUploadsDisabled = apperror.Unavailable("uploads_disabled", "image uploads are not configured")
	ErrEmptyUpload     = apperror.BadRequest("empty_file", "image file is empty")
)

type UploadService struct {
	store    ImageStore
	maxBytes int64
	logger   *logrus.Logger
}

// NewUploadService accepts a nil store; uploads then fail with 503.
func NewUploadService(store ImageStore, maxBytes int64, logger *logrus.Logger) *UploadService {
	return &UploadService{store: store, maxBytes: maxBytes, logger: logger}
}

func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

// UploadImage sniffs the content, rejects anything but jpeg/png/webp/avif and stores it under a random name.
func (s *UploadService) UploadImage(ctx context.Context, prefix string, data []byte) (*entity.UploadedImage, error) {
	if s.store == nil {
		return nil, ErrUploadsDisabled
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, apperror.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("image must be at most %d bytes", s.maxBytes))
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, apperror.New(http.StatusUnsupportedMediaType, "unsupported_media_type",
			"only jpeg, png, webp and avif images are allowed").WithDetails(map[string]string{"detected": mt.String()})
	}

	name := uuid.NewString() + mt.Extension()
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		name = prefix + "/" + name
	}
	img, err := s.store.Upload(ctx, name, mt.String(), data)
	if err != nil {
		s.logger.WithError(err).WithField("provider", s.store.Name()).Error("image upload failed")
		return nil, apperror.BadGateway("upload_failed", "image upload failed").Wrap(err)
	}
	return img, nil
}

func (s *UploadService) DeleteImage(ctx context.Context, publicID string) error {
	if s.store == nil {
		return ErrUploadsDisabled
	}
	if strings.TrimSpace(publicID) == "" {
		return apperror.BadRequest("public_id_required", "public_id is required")
	}
	if err := s.store.Delete(ctx, publicID); err != nil {
		s.logger.WithError(err).WithField("public_id", publicID).Error("image delete failed")
		return apperror.BadGateway("delete_failed", "image delete failed").Wrap(err)
	}
	return nil
}
