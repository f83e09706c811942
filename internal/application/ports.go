package application

import (
	"context"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/mailer"
)

// ImageStore is where uploaded images live (Cloudinary or GCS).
type ImageStore interface {
	Name() string
	Upload(ctx context.Context, name, contentType string, data []byte) (*entity.UploadedImage, error)
	Delete(ctx context.Context, publicID string) error
}

// EmailQueue hands email jobs to the worker.
type EmailQueue interface {
	Enqueue(ctx context.Context, job mailer.EmailJob) error
}

// ProductSearch is the full-text product index.
type ProductSearch interface {
	Index(ctx context.Context, p *entity.Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]string, error)
}

// PaymentGateway is the checkout provider.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*entity.GatewayOrder, error)
	OrderPayments(ctx context.Context, gatewayOrderID string) ([]entity.GatewayPayment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// TextGenerator returns a JSON document for a prompt.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// ResultCache stores JSON values under a key prefix.
type ResultCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Invalidate(ctx context.Context) error
}

// CartCache is the read-through cart cache.
type CartCache interface {
	Get(ctx context.Context, userID string) (*entity.Cart, error)
	Set(ctx context.Context, userID string, cart *entity.Cart) error
	Delete(ctx context.Context, userID string) error
}

// EventDeduper claims webhook event ids.
type EventDeduper interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// RequestMeta is who made the request, for audit rows and emails.
type RequestMeta struct {
	IP        string
	UserAgent string
}
