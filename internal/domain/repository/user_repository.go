package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict is returned when a guarded update found the record in an unexpected state.
	ErrConflict = errors.New("state conflict")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetVerified(ctx context.Context, id string) error
	IsVerified(ctx context.Context, id string) (bool, error)
	SetRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f entity.UserFilter) (entity.Page[entity.User], error)
}

// AuditLogRepository persists security-relevant actions.
type AuditLogRepository interface {
	Insert(ctx context.Context, log entity.AuditLog) error
}
