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

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(CollOrders)}
}

func (r *OrderRepository) Create(ctx context.Context, o *entity.Order) error {
	now := time.Now().UTC()
	o.ID = primitive.NewObjectID()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.StatusHistory == nil {
		o.StatusHistory = []entity.StatusChange{}
	}
	_, err := r.coll.InsertOne(ctx, o)
	return dupKey(err)
}

func (r *OrderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Order, error) {
	var o entity.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (r *OrderRepository) List(ctx context.Context, f entity.OrderFilter) (entity.Page[entity.Order], error) {
	f.ListQuery = f.ListQuery.Normalize("created_at", "total", "status")

	match := bson.M{}
	if f.UserID != "" {
		match["user_id"] = f.UserID
	}
	if f.Status != "" {
		match["status"] = f.Status
	}
	if f.PaymentStatus != "" {
		match["payment_status"] = f.PaymentStatus
	}
	if f.From != nil || f.To != nil {
		created := bson.M{}
		if f.From != nil {
			created["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			created["$lt"] = f.To.UTC()
		}
		match["created_at"] = created
	}
	if f.Search != "" {
		match["order_number"] = searchRegex(f.Search)
	}

	return aggregatePage[entity.Order](ctx, r.coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		pageStage(f.ListQuery, f.Sort),
	})
}

// Transition applies t only when the stored status and payment status match its guard.
func (r *OrderRepository) Transition(ctx context.Context, id primitive.ObjectID, t entity.OrderTransition) (*entity.Order, error) {
	filter := bson.M{"_id": id}
	if len(t.FromStatuses) > 0 {
		filter["status"] = bson.M{"$in": t.FromStatuses}
	}
	if len(t.FromPaymentStatuses) > 0 {
		filter["payment_status"] = bson.M{"$in": t.FromPaymentStatuses}
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if t.To != "" {
		set["status"] = t.To
	}
	if t.ToPayment != "" {
		set["payment_status"] = t.ToPayment
	}
	if t.RazorpayOrderID != "" {
		set["razorpay_order_id"] = t.RazorpayOrderID
	}
	if t.CancelReason != "" {
		set["cancel_reason"] = t.CancelReason
	}
	update := bson.M{"$set": set}
	if t.Change != nil {
		update["$push"] = bson.M{"status_history": t.Change}
	}

	var o entity.Order
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, cerr := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

func (r *OrderRepository) SetStockTaken(ctx context.Context, id primitive.ObjectID, taken []int) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for i, n := range taken {
		set[fmt.Sprintf("items.%d.stock_taken", i)] = n
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type statsResult struct {
	ByStatus []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	} `bson:"by_status"`
	Paid []struct {
		Revenue float64 `bson:"revenue"`
	} `bson:"paid"`
	Today []struct {
		Count   int64   `bson:"count"`
		Revenue float64 `bson:"revenue"`
	} `bson:"today"`
}

// Stats summarizes all orders plus those created at or after since.
func (r *OrderRepository) Stats(ctx context.Context, since time.Time) (entity.OrderStats, error) {
	paidTotal := bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$payment_status", entity.PaymentPaid}}, "$total", 0}}
	pipeline := mongo.Pipeline{
		{{Key: "$facet", Value: bson.M{
			"by_status": bson.A{
				bson.D{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
			},
			"paid": bson.A{
				bson.D{{Key: "$match", Value: bson.M{"payment_status": entity.PaymentPaid}}},
				bson.D{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$total"}}}},
			},
			"today": bson.A{
				bson.D{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since.UTC()}}}},
				bson.D{{Key: "$group", Value: bson.M{
					"_id":     nil,
					"count":   bson.M{"$sum": 1},
					"revenue": bson.M{"$sum": paidTotal},
				}}},
			},
		}}},
	}

	stats := entity.OrderStats{ByStatus: map[string]int64{}}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, err
	}
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		return stats, cur.Err()
	}
	var res statsResult
	if err := cur.Decode(&res); err != nil {
		return stats, err
	}

	for _, s := range res.ByStatus {
		stats.ByStatus[s.Status] = s.Count
		stats.TotalOrders += s.Count
	}
	if len(res.Paid) > 0 {
		stats.PaidRevenue = res.Paid[0].Revenue
	}
	if len(res.Today) > 0 {
		stats.TodayOrders = res.Today[0].Count
		stats.TodayRevenue = res.Today[0].Revenue
	}
	return stats, nil
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
