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

type CategoryRepository struct {
	coll *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{coll: db.Collection(CollCategories)}
}

func (r *CategoryRepository) Create(ctx context.Context, c *entity.Category) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.ProductCount = 0
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, c)
	return dupKey(err)
}

func (r *CategoryRepository) Update(ctx context.Context, c *entity.Category) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"image":       c.Image,
		"is_active":   c.IsActive,
		"updated_at":  c.UpdatedAt,
	}})
	if err != nil {
		return dupKey(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Category, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*entity.Category, error) {
	return r.findOne(ctx, bson.M{"slug": slug})
}

func (r *CategoryRepository) findOne(ctx context.Context, match bson.M) (*entity.Category, error) {
	var c entity.Category
	if err := r.coll.FindOne(ctx, match).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// List pages categories with their product counts.
func (r *CategoryRepository) List(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Category], error) {
	q = q.Normalize("created_at", "name", "product_count")
	return aggregatePage[entity.Category](ctx, r.coll, refListPipeline(q, includeInactive, "category_id"))
}

// refListPipeline is shared by the category and brand listings.
func refListPipeline(q entity.ListQuery, includeInactive bool, refField string) mongo.Pipeline {
	match := bson.M{}
	if !includeInactive {
		match["is_active"] = true
	}
	if q.Search != "" {
		match["name"] = searchRegex(q.Search)
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: match}}}
	if q.Sort == "product_count" {
		pipeline = append(pipeline, productCountLookup(refField)...)
		return append(pipeline, pageStage(q, q.Sort))
	}
	return append(pipeline, pageStage(q, q.Sort, productCountLookup(refField)...))
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)
