package application

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
)

var ErrDuplicateSlug = apperror.Conflict("duplicate_slug", "slug is already in use")

// storeErr maps repository errors to client errors for resource.
func storeErr(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return apperror.NotFound(resource)
	case errors.Is(err, repo.ErrDuplicate):
		return ErrDuplicateSlug
	default:
		return apperror.Internal(err)
	}
}

// parseID turns a hex id into an ObjectID, or a 404 for resource.
func parseID(id, resource string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.NotFound(resource)
	}
	return oid, nil
}
