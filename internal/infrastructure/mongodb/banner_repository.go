package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

type BannerRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewBannerRepository(db *mongo.Database) *BannerRepository {
	return &BannerRepository{coll: db.Collection(CollBanners), now: time.Now}
}

func (r *BannerRepository) Create(ctx context.Context, b *entity.Banner) error {
	now := r.now().UTC()
	b.ID = primitive.NewObjectID()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.coll.InsertOne(ctx, b)
	return err
}

func (r *BannerRepository) Update(ctx context.Context, b *entity.Banner) error {
	b.UpdatedAt = r.now().UTC()
	set := bson.M{
		"title":      b.Title,
		"subtitle":   b.Subtitle,
		"image":      b.Image,
		"link":       b.Link,
		"position":   b.Position,
		"is_active":  b.IsActive,
		"updated_at": b.UpdatedAt,
	}
	unset := bson.M{}
	if b.StartsAt != nil {
		set["starts_at"] = b.StartsAt
	} else {
		unset["starts_at"] = ""
	}
	if b.EndsAt != nil {
		set["ends_at"] = b.EndsAt
	} else {
		unset["ends_at"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateByID(ctx, b.ID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *BannerRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *BannerRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Banner, error) {
	var b entity.Banner
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *BannerRepository) List(ctx context.Context, q entity.ListQuery) (entity.Page[entity.Banner], error) {
	q = q.Normalize("position", "created_at", "title")
	match := bson.M{}
	if q.Search != "" {
		match["title"] = searchRegex(q.Search)
	}
	return aggregatePage[entity.Banner](ctx, r.coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		pageStage(q, q.Sort),
	})
}

// Live returns active banners whose schedule window contains now, by position.
func (r *BannerRepository) Live(ctx context.Context) ([]entity.Banner, error) {
	now := r.now().UTC()
	filter := bson.M{
		"is_active": true,
		"$and": bson.A{
			bson.M{"$or": bson.A{bson.M{"starts_at": nil}, bson.M{"starts_at": bson.M{"$lte": now}}}},
			bson.M{"$or": bson.A{bson.M{"ends_at": nil}, bson.M{"ends_at": bson.M{"$gt": now}}}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []entity.Banner{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ repository.BannerRepository = (*BannerRepository)(nil)
