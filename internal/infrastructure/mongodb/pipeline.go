package mongodb

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

// facetResult is the decoded shape of a $facet page stage.
type facetResult[T any] struct {
	Data       []T `bson:"data"`
	TotalCount []struct {
		Count int64 `bson:"count"`
	} `bson:"totalCount"`
}

// pageStage builds the $facet stage that returns one page plus the total count.
// Stages in after run on the page only (joins, projections).
func pageStage(q entity.ListQuery, sortField string, after ...bson.D) bson.D {
	data := bson.A{
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: sortField, Value: q.Direction()},
			{Key: "_id", Value: q.Direction()},
		}}},
		bson.D{{Key: "$skip", Value: q.Skip()}},
		bson.D{{Key: "$limit", Value: int64(q.Limit)}},
	}
	for _, st := range after {
		data = append(data, st)
	}
	return bson.D{{Key: "$facet", Value: bson.M{
		"data":       data,
		"totalCount": bson.A{bson.D{{Key: "$count", Value: "count"}}},
	}}}
}

// aggregatePage runs pipeline (which must end in pageStage) and decodes the single facet document.
func aggregatePage[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) (entity.Page[T], error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return entity.Page[T]{}, err
	}
	defer cur.Close(ctx)

	page := entity.Page[T]{Data: []T{}}
	if !cur.Next(ctx) {
		return page, cur.Err()
	}
	var res facetResult[T]
	if err := cur.Decode(&res); err != nil {
		return entity.Page[T]{}, err
	}
	if res.Data != nil {
		page.Data = res.Data
	}
	if len(res.TotalCount) > 0 {
		page.TotalCount = res.TotalCount[0].Count
	}
	return page, nil
}

// searchRegex returns a case-insensitive regex matching s literally.
func searchRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(s)), Options: "i"}
}

// notFound maps mongo.ErrNoDocuments onto the repository sentinel.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}

// dupKey maps a unique index violation onto the repository sentinel.
func dupKey(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// productCountLookup joins the number of products referencing the document via field.
func productCountLookup(field string) []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from": CollProducts,
			"let":  bson.M{"ref": "$_id"},
			"pipeline": bson.A{
				bson.D{{Key: "$match", Value: bson.M{"$expr": bson.M{"$eq": bson.A{"$" + field, "$$ref"}}}}},
				bson.D{{Key: "$count", Value: "n"}},
			},
			"as": "pc",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"product_count": bson.M{"$ifNull": bson.A{bson.M{"$first": "$pc.n"}, 0}},
		}}},
		{{Key: "$project", Value: bson.M{"pc": 0}}},
	}
}
