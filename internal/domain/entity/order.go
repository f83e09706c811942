package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCOD      = "cod"
)

type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image,omitempty" json:"image,omitempty"`
	UnitPrice float64            `bson:"unit_price" json:"unit_price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	LineTotal float64            `bson:"line_total" json:"line_total"`
	// StockTaken is how many units were actually decremented for this line.
	StockTaken int `bson:"stock_taken,omitempty" json:"-"`
}

type Address struct {
	FullName   string `bson:"full_name" json:"full_name" binding:"required,max=120"`
	Phone      string `bson:"phone" json:"phone" binding:"required,min=7,max=20"`
	Line1      string `bson:"line1" json:"line1" binding:"required,max=200"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty" binding:"max=200"`
	City       string `bson:"city" json:"city" binding:"required,max=100"`
	State      string `bson:"state" json:"state" binding:"required,max=100"`
	PostalCode string `bson:"postal_code" json:"postal_code" binding:"required,max=12"`
	Country    string `bson:"country" json:"country" binding:"required,max=60"`
}

type StatusChange struct {
	From string    `bson:"from" json:"from"`
	To   string    `bson:"to" json:"to"`
	At   time.Time `bson:"at" json:"at"`
	By   string    `bson:"by,omitempty" json:"by,omitempty"`
	Note string    `bson:"note,omitempty" json:"note,omitempty"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber     string             `bson:"order_number" json:"order_number"`
	UserID          string             `bson:"user_id" json:"user_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress Address            `bson:"shipping_address" json:"shipping_address"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	ShippingFee     float64            `bson:"shipping_fee" json:"shipping_fee"`
	Total           float64            `bson:"total" json:"total"`
	Currency        string             `bson:"currency" json:"currency"`
	PaymentMethod   string             `bson:"payment_method" json:"payment_method"`
	Status          OrderStatus        `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus      `bson:"payment_status" json:"payment_status"`
	RazorpayOrderID string             `bson:"razorpay_order_id,omitempty" json:"razorpay_order_id,omitempty"`
	StatusHistory   []StatusChange     `bson:"status_history" json:"status_history"`
	CancelReason    string             `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ListQuery
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
}

// OrderTransition describes a guarded status update. The update only applies
// when the stored status is one of FromStatuses (and payment status one of
// FromPaymentStatuses when set).
type OrderTransition struct {
	FromStatuses        []OrderStatus
	FromPaymentStatuses []PaymentStatus
	To                  OrderStatus   // empty keeps status
	ToPayment           PaymentStatus // empty keeps payment status
	RazorpayOrderID     string
	CancelReason        string
	Change              *StatusChange
}

// OrderStats is the admin dashboard summary.
type OrderStats struct {
	ByStatus     map[string]int64 `json:"by_status"`
	TotalOrders  int64            `json:"total_orders"`
	PaidRevenue  float64          `json:"paid_revenue"`
	TodayOrders  int64            `json:"today_orders"`
	TodayRevenue float64          `json:"today_revenue"`
}
