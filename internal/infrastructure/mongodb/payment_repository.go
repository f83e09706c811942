package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

type PaymentRepository struct {
	coll *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{coll: db.Collection(CollPayments)}
}

func (r *PaymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Status == "" {
		p.Status = entity.PaymentRecordCreated
	}
	_, err := r.coll.InsertOne(ctx, p)
	return dupKey(err)
}

func (r *PaymentRepository) GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*entity.Payment, error) {
	var p entity.Payment
	if err := r.coll.FindOne(ctx, bson.M{"razorpay_order_id": razorpayOrderID}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) LatestForOrder(ctx context.Context, orderID primitive.ObjectID) (*entity.Payment, error) {
	var p entity.Payment
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if err := r.coll.FindOne(ctx, bson.M{"order_id": orderID}, opts).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PaymentRepository) CountForOrder(ctx context.Context, orderID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"order_id": orderID})
}

// MarkPaid flips a created or failed payment to paid. Only one caller can win.
func (r *PaymentRepository) MarkPaid(ctx context.Context, razorpayOrderID string, c entity.Capture) (*entity.Payment, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":     entity.PaymentRecordPaid,
		"source":     c.Source,
		"paid_at":    now,
		"updated_at": now,
	}
	if c.RazorpayPaymentID != "" {
		set["razorpay_payment_id"] = c.RazorpayPaymentID
	}
	if c.Signature != "" {
		set["razorpay_signature"] = c.Signature
	}
	if c.Method != "" {
		set["method"] = c.Method
	}

	return r.guardedUpdate(ctx,
		bson.M{
			"razorpay_order_id": razorpayOrderID,
			"status":            bson.M{"$in": bson.A{entity.PaymentRecordCreated, entity.PaymentRecordFailed}},
		},
		bson.M{"$set": set, "$unset": bson.M{"failure_reason": ""}},
	)
}

// MarkFailed flips a created payment to failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, razorpayOrderID, paymentID, reason, source string) (*entity.Payment, error) {
	set := bson.M{
		"status":         entity.PaymentRecordFailed,
		"failure_reason": reason,
		"source":         source,
		"updated_at":     time.Now().UTC(),
	}
	if paymentID != "" {
		set["razorpay_payment_id"] = paymentID
	}
	return r.guardedUpdate(ctx,
		bson.M{"razorpay_order_id": razorpayOrderID, "status": entity.PaymentRecordCreated},
		bson.M{"$set": set},
	)
}

func (r *PaymentRepository) guardedUpdate(ctx context.Context, filter, update bson.M) (*entity.Payment, error) {
	var p entity.Payment
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	n, cerr := r.coll.CountDocuments(ctx, bson.M{"razorpay_order_id": filter["razorpay_order_id"]})
	if cerr != nil {
		return nil, cerr
	}
	if n == 0 {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrConflict
}

// MarkRefunded moves the paid payment of an order to refunded.
func (r *PaymentRepository) MarkRefunded(ctx context.Context, orderID primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": entity.PaymentRecordPaid},
		bson.M{"$set": bson.M{"status": entity.PaymentRecordRefunded, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, f entity.PaymentFilter) (entity.Page[entity.Payment], error) {
	f.ListQuery = f.ListQuery.Normalize("created_at", "amount", "status")
	match := bson.M{}
	if f.Status != "" {
		match["status"] = f.Status
	}
	if !f.OrderID.IsZero() {
		match["order_id"] = f.OrderID
	}
	if f.Search != "" {
		re := searchRegex(f.Search)
		match["$or"] = bson.A{
			bson.M{"razorpay_order_id": re},
			bson.M{"razorpay_payment_id": re},
		}
	}
	return aggregatePage[entity.Payment](ctx, r.coll, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		pageStage(f.ListQuery, f.Sort),
	})
}

// Stale returns created payments older than the cutoff, oldest first.
func (r *PaymentRepository) Stale(ctx context.Context, olderThan time.Time, limit int) ([]entity.Payment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{
		"status":     entity.PaymentRecordCreated,
		"created_at": bson.M{"$lt": olderThan.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	out := []entity.Payment{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
