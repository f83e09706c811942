package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

type BrandRepository struct {
	coll *mongo.Collection
}

func NewBrandRepository(db *mongo.Database) *BrandRepository {
	return &BrandRepository{coll: db.Collection(CollBrands)}
}

func (r *BrandRepository) Create(ctx context.Context, b *entity.Brand) error {
	now := time.Now().UTC()
	b.ID = primitive.NewObjectID()
	b.ProductCount = 0
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, b)
	return dupKey(err)
}

func (r *BrandRepository) Update(ctx context.Context, b *entity.Brand) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, b.ID, bson.M{"$set": bson.M{
		"name":        b.Name,
		"slug":        b.Slug,
		"description": b.Description,
		"logo":        b.Logo,
		"country":     b.Country,
		"is_active":   b.IsActive,
		"updated_at":  b.UpdatedAt,
	}})
	if err != nil {
		return dupKey(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *BrandRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *BrandRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Brand, error) {
	var b entity.Brand
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BrandRepository) GetBySlug(ctx context.Context, slug string) (*entity.Brand, error) {
	var b entity.Brand
	if err := r.coll.FindOne(ctx, bson.M{"slug": slug}).Decode(&b); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BrandRepository) List(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Brand], error) {
	q = q.Normalize("created_at", "name", "product_count")
	return aggregatePage[entity.Brand](ctx, r.coll, refListPipeline(q, includeInactive, "brand_id"))
}

var _ repository.BrandRepository = (*BrandRepository)(nil)
