package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func unique(keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
}

func plain(keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys}
}

// EnsureIndexes creates the indexes every repository relies on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		CollCategories: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		CollBrands: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		CollProducts: {
			unique(bson.D{{Key: "slug", Value: 1}}),
			plain(bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "brand_id", Value: 1}}),
			plain(bson.D{{Key: "category_id", Value: 1}}),
			plain(bson.D{{Key: "tags", Value: 1}}),
		},
		CollBanners: {
			plain(bson.D{{Key: "is_active", Value: 1}, {Key: "position", Value: 1}}),
		},
		CollCarts: {
			unique(bson.D{{Key: "user_id", Value: 1}}),
			{
				Keys:    bson.D{{Key: "updated_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
			},
		},
		CollOrders: {
			unique(bson.D{{Key: "order_number", Value: 1}}),
			plain(bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}),
		},
		CollPayments: {
			unique(bson.D{{Key: "razorpay_order_id", Value: 1}}),
			plain(bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}),
		},
		CollOutbox: {
			plain(bson.D{{Key: "processed_at", Value: 1}, {Key: "created_at", Value: 1}}),
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
