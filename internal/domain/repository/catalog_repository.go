package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *entity.Category) error
	Update(ctx context.Context, c *entity.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Category, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Category, error)
	List(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Category], error)
}

type BrandRepository interface {
	Create(ctx context.Context, b *entity.Brand) error
	Update(ctx context.Context, b *entity.Brand) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Brand, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Brand, error)
	List(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Brand], error)
}

type BannerRepository interface {
	Create(ctx context.Context, b *entity.Banner) error
	Update(ctx context.Context, b *entity.Banner) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Banner, error)
	List(ctx context.Context, q entity.ListQuery) (entity.Page[entity.Banner], error)
	Live(ctx context.Context) ([]entity.Banner, error)
}

// StockChange is a signed stock delta for one product.
type StockChange struct {
	ProductID primitive.ObjectID
	Delta     int
}

type ProductRepository interface {
	Create(ctx context.Context, p *entity.Product) error
	Update(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Product, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]entity.Product, error)
	List(ctx context.Context, f entity.ProductFilter) (entity.Page[entity.Product], error)
	// AdjustStock applies each change. Negative deltas only apply when enough
	// stock remains; the ids that could not be decremented are returned.
	AdjustStock(ctx context.Context, changes []StockChange) ([]primitive.ObjectID, error)
	// CountByRef counts products referencing a brand or category.
	CountByRef(ctx context.Context, field string, id primitive.ObjectID) (int64, error)
}
