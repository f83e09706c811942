package razorpay

import (
	"context"
	"errors"
	"fmt"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/breaker"
)

// ErrUnavailable is returned while the breaker rejects calls.
var ErrUnavailable = errors.New("razorpay unavailable")

// orderAPI is the subset of the razorpay-go Order resource the gateway uses.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Payments(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type Gateway struct {
	orders orderAPI
	cfg    Config
	cb     *gobreaker.CircuitBreaker[map[string]interface{}]
	logger *logrus.Logger
}

func NewGateway(cfg Config, logger *logrus.Logger) *Gateway {
	client := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return newGateway(client.Order, cfg, logger)
}

func newGateway(orders orderAPI, cfg Config, logger *logrus.Logger) *Gateway {
	return &Gateway{
		orders: orders,
		cfg:    cfg,
		cb:     breaker.New[map[string]interface{}]("razorpay", logger),
		logger: logger,
	}
}

func (g *Gateway) KeyID() string { return g.cfg.KeyID }

// CreateOrder creates a checkout order for amountMinor (paise).
func (g *Gateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*entity.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := g.call(func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("create razorpay order: %w", err)
	}

	o := &entity.GatewayOrder{
		ID:          str(body, "id"),
		AmountMinor: minor(body, "amount"),
		Currency:    str(body, "currency"),
		Receipt:     str(body, "receipt"),
		Status:      str(body, "status"),
	}
	if o.ID == "" {
		return nil, errors.New("create razorpay order: response has no id")
	}
	return o, nil
}

// OrderPayments lists every payment attempt made against a Razorpay order.
func (g *Gateway) OrderPayments(ctx context.Context, razorpayOrderID string) ([]entity.GatewayPayment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.call(func() (map[string]interface{}, error) {
		return g.orders.Payments(razorpayOrderID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch payments for %s: %w", razorpayOrderID, err)
	}

	items, _ := body["items"].([]interface{})
	out := make([]entity.GatewayPayment, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, entity.GatewayPayment{
			ID:               str(m, "id"),
			Status:           str(m, "status"),
			Method:           str(m, "method"),
			AmountMinor:      minor(m, "amount"),
			ErrorDescription: str(m, "error_description"),
		})
	}
	return out, nil
}

// VerifyPaymentSignature checks the checkout handler signature over order_id|payment_id.
func (g *Gateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.cfg.KeySecret)
}

// VerifyWebhookSignature checks X-Razorpay-Signature over the raw body.
func (g *Gateway) VerifyWebhookSignature(body []byte, signature string) bool {
	if g.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, g.cfg.WebhookSecret)
}

func (g *Gateway) call(fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	body, err := g.cb.Execute(fn)
	if breaker.IsOpen(err) {
		return nil, ErrUnavailable
	}
	return body, err
}

func str(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// minor reads a JSON number in paise.
func minor(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
