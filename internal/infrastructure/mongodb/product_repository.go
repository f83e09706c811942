package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

// productSortFields maps public sort keys to pipeline fields.
var productSortFields = map[string]string{
	"created_at": "created_at",
	"price":      "effective_price",
	"name":       "name",
	"rating":     "rating",
	"stock":      "stock",
}

type ProductRepository struct {
	coll       *mongo.Collection
	brands     *mongo.Collection
	categories *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		coll:       db.Collection(CollProducts),
		brands:     db.Collection(CollBrands),
		categories: db.Collection(CollCategories),
	}
}

func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	brand, category := p.Brand, p.Category
	p.Brand, p.Category = nil, nil
	_, err := r.coll.InsertOne(ctx, p)
	p.Brand, p.Category = brand, category
	return dupKey(err)
}

func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"name":           p.Name,
		"slug":           p.Slug,
		"description":    p.Description,
		"brand_id":       p.BrandID,
		"category_id":    p.CategoryID,
		"price":          p.Price,
		"discount_price": p.DiscountPrice,
		"stock":          p.Stock,
		"images":         p.Images,
		"gender":         p.Gender,
		"concentration":  p.Concentration,
		"volume_ml":      p.VolumeML,
		"notes":          p.Notes,
		"tags":           p.Tags,
		"is_featured":    p.IsFeatured,
		"is_active":      p.IsActive,
		"updated_at":     p.UpdatedAt,
	}})
	if err != nil {
		return dupKey(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*entity.Product, error) {
	return r.getOne(ctx, bson.M{"slug": slug})
}

func (r *ProductRepository) getOne(ctx context.Context, match bson.M) (*entity.Product, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$limit", Value: 1}},
	}
	pipeline = append(pipeline, productJoinStages()...)

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return nil, repository.ErrNotFound
	}
	var p entity.Product
	if err := cur.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns the products found among ids, without joins. Missing ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]entity.Product, error) {
	out := []entity.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List runs the filtered product listing. Brand and category are joined on the page only.
func (r *ProductRepository) List(ctx context.Context, f entity.ProductFilter) (entity.Page[entity.Product], error) {
	f.ListQuery = f.ListQuery.Normalize("created_at", "price", "name", "rating", "stock")

	match, ok, err := r.productMatch(ctx, f)
	if err != nil {
		return entity.Page[entity.Product]{}, err
	}
	if !ok {
		return entity.Page[entity.Product]{Data: []entity.Product{}}, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{"effective_price": effectivePriceExpr()}}},
	}
	if price := priceRange(f.MinPrice, f.MaxPrice); price != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"effective_price": price}}})
	}
	pipeline = append(pipeline, pageStage(f.ListQuery, productSortFields[f.Sort], productJoinStages()...))

	return aggregatePage[entity.Product](ctx, r.coll, pipeline)
}

// productMatch builds the $match document. ok is false when a brand or category
// reference does not resolve, in which case nothing can match.
func (r *ProductRepository) productMatch(ctx context.Context, f entity.ProductFilter) (bson.M, bool, error) {
	match := bson.M{}
	var and bson.A

	if !f.IncludeInactive {
		match["is_active"] = true
	}
	if f.Category != "" {
		id, err := resolveRef(ctx, r.categories, f.Category)
		if err != nil || id.IsZero() {
			return nil, false, err
		}
		match["category_id"] = id
	}
	if f.Brand != "" {
		id, err := resolveRef(ctx, r.brands, f.Brand)
		if err != nil || id.IsZero() {
			return nil, false, err
		}
		match["brand_id"] = id
	}
	if f.Gender != "" {
		if f.IncludeUnisex && f.Gender != entity.GenderUnisex {
			match["gender"] = bson.M{"$in": bson.A{f.Gender, entity.GenderUnisex}}
		} else {
			match["gender"] = f.Gender
		}
	}
	if f.Concentration != "" {
		match["concentration"] = f.Concentration
	}
	if f.InStock {
		match["stock"] = bson.M{"$gt": 0}
	}
	if f.Featured != nil {
		match["is_featured"] = *f.Featured
	}
	if len(f.Tags) > 0 {
		match["tags"] = bson.M{"$in": f.Tags}
	}
	if len(f.IDs) > 0 {
		match["_id"] = bson.M{"$in": f.IDs}
	}
	if len(f.Notes) > 0 {
		in := bson.M{"$in": f.Notes}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"notes.top": in},
			bson.M{"notes.middle": in},
			bson.M{"notes.base": in},
		}})
	}
	if f.Search != "" {
		re := searchRegex(f.Search)
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name": re},
			bson.M{"tags": re},
		}})
	}
	if len(and) > 0 {
		match["$and"] = and
	}
	return match, true, nil
}

// resolveRef accepts an ObjectID hex or a slug. A zero id means no such document.
func resolveRef(ctx context.Context, coll *mongo.Collection, ref string) (primitive.ObjectID, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return id, nil
	}
	var doc struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	err := coll.FindOne(ctx, bson.M{"slug": ref}, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&doc)
	if err != nil {
		if err = notFound(err); errors.Is(err, repository.ErrNotFound) {
			return primitive.NilObjectID, nil
		}
		return primitive.NilObjectID, err
	}
	return doc.ID, nil
}

func effectivePriceExpr() bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$gt": bson.A{"$discount_price", 0}},
			bson.M{"$lt": bson.A{"$discount_price", "$price"}},
		}},
		"$discount_price",
		"$price",
	}}
}

func priceRange(lo, hi float64) bson.M {
	if lo <= 0 && hi <= 0 {
		return nil
	}
	m := bson.M{}
	if lo > 0 {
		m["$gte"] = lo
	}
	if hi > 0 {
		m["$lte"] = hi
	}
	return m
}

// productJoinStages embeds brand and category summaries.
func productJoinStages() []bson.D {
	summary := bson.A{bson.D{{Key: "$project", Value: bson.M{"name": 1, "slug": 1}}}}
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         CollBrands,
			"localField":   "brand_id",
			"foreignField": "_id",
			"pipeline":     summary,
			"as":           "brand",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$brand", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         CollCategories,
			"localField":   "category_id",
			"foreignField": "_id",
			"pipeline":     summary,
			"as":           "category",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$category", "preserveNullAndEmptyArrays": true}}},
	}
}

// AdjustStock applies each change in turn. A negative delta only applies when
// the current stock covers it.
func (r *ProductRepository) AdjustStock(ctx context.Context, changes []repository.StockChange) ([]primitive.ObjectID, error) {
	var failed []primitive.ObjectID
	now := time.Now().UTC()
	for _, ch := range changes {
		if ch.Delta == 0 {
			continue
		}
		filter := bson.M{"_id": ch.ProductID}
		if ch.Delta < 0 {
			filter["stock"] = bson.M{"$gte": -ch.Delta}
		}
		res, err := r.coll.UpdateOne(ctx, filter, bson.M{
			"$inc": bson.M{"stock": ch.Delta},
			"$set": bson.M{"updated_at": now},
		})
		if err != nil {
			return failed, fmt.Errorf("adjust stock %s: %w", ch.ProductID.Hex(), err)
		}
		if res.MatchedCount == 0 {
			failed = append(failed, ch.ProductID)
		}
	}
	return failed, nil
}

func (r *ProductRepository) CountByRef(ctx context.Context, field string, id primitive.ObjectID) (int64, error) {
	switch field {
	case "brand_id", "category_id":
	default:
		return 0, fmt.Errorf("unsupported reference field %q", field)
	}
	return r.coll.CountDocuments(ctx, bson.M{field: id})
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
