package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
)

type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*entity.Cart, error)
	// SetItem inserts the item or replaces its quantity.
	SetItem(ctx context.Context, userID string, item entity.CartItem) error
	RemoveItem(ctx context.Context, userID string, productID primitive.ObjectID) error
	DeleteCart(ctx context.Context, userID string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *entity.Order) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.Order, error)
	List(ctx context.Context, f entity.OrderFilter) (entity.Page[entity.Order], error)
	// Transition applies a guarded update and returns the updated order.
	// ErrConflict means the stored state did not match the guard.
	Transition(ctx context.Context, id primitive.ObjectID, t entity.OrderTransition) (*entity.Order, error)
	// SetStockTaken records per item how many units were decremented.
	SetStockTaken(ctx context.Context, id primitive.ObjectID, taken []int) error
	Stats(ctx context.Context, since time.Time) (entity.OrderStats, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *entity.Payment) error
	GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*entity.Payment, error)
	LatestForOrder(ctx context.Context, orderID primitive.ObjectID) (*entity.Payment, error)
	CountForOrder(ctx context.Context, orderID primitive.ObjectID) (int64, error)
	// MarkPaid flips a non-paid payment to paid. ErrConflict means it was already paid.
	MarkPaid(ctx context.Context, razorpayOrderID string, c entity.Capture) (*entity.Payment, error)
	// MarkFailed flips a created payment to failed. ErrConflict means it was not created.
	MarkFailed(ctx context.Context, razorpayOrderID, paymentID, reason, source string) (*entity.Payment, error)
	MarkRefunded(ctx context.Context, orderID primitive.ObjectID) error
	List(ctx context.Context, f entity.PaymentFilter) (entity.Page[entity.Payment], error)
	// Stale returns created payments older than the cutoff.
	Stale(ctx context.Context, olderThan time.Time, limit int) ([]entity.Payment, error)
}

type OutboxRepository interface {
	Append(ctx context.Context, aggregateID, eventType string, payload any) error
	Unprocessed(ctx context.Context, limit int) ([]entity.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID) error
}
