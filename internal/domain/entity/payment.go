package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentRecordStatus is the lifecycle of one Razorpay order attempt.
type PaymentRecordStatus string

const (
	PaymentRecordCreated  PaymentRecordStatus = "created"
	PaymentRecordPaid     PaymentRecordStatus = "paid"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

const (
	PaymentSourceVerify    = "verify"
	PaymentSourceWebhook   = "webhook"
	PaymentSourceReconcile = "reconcile"
)

type Payment struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderID           primitive.ObjectID  `bson:"order_id" json:"order_id"`
	UserID            string              `bson:"user_id" json:"user_id"`
	RazorpayOrderID   string              `bson:"razorpay_order_id" json:"razorpay_order_id"`
	RazorpayPaymentID string              `bson:"razorpay_payment_id,omitempty" json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string              `bson:"razorpay_signature,omitempty" json:"-"`
	Amount            float64             `bson:"amount" json:"amount"`
	AmountMinor       int64               `bson:"amount_minor" json:"amount_minor"`
	Currency          string              `bson:"currency" json:"currency"`
	Status            PaymentRecordStatus `bson:"status" json:"status"`
	Method            string              `bson:"method,omitempty" json:"method,omitempty"`
	Source            string              `bson:"source,omitempty" json:"source,omitempty"`
	FailureReason     string              `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Attempt           int                 `bson:"attempt" json:"attempt"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `bson:"updated_at" json:"updated_at"`
	PaidAt            *time.Time          `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
}

// Capture carries the gateway facts recorded when a payment is captured.
type Capture struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	Signature         string
	Method            string
	Source            string
}

type PaymentFilter struct {
	ListQuery
	Status  PaymentRecordStatus
	OrderID primitive.ObjectID
}

// OutboxEvent is an order event waiting to be published.
type OutboxEvent struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	AggregateID string             `bson:"aggregate_id"`
	EventType   string             `bson:"event_type"`
	Payload     []byte             `bson:"payload"`
	CreatedAt   time.Time          `bson:"created_at"`
	ProcessedAt *time.Time         `bson:"processed_at,omitempty"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// GatewayOrder is the checkout order created at the payment provider.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// GatewayPayment is one payment attempt against a GatewayOrder.
type GatewayPayment struct {
	ID               string
	Status           string
	Method           string
	AmountMinor      int64
	ErrorDescription string
}

const (
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentFailed     = "failed"
)
