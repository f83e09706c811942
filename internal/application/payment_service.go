package application

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/razorpay"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
)

var (
	ErrInvalidSignature = apperror.BadRequest("invalid_signature", "signature verification failed")
	ErrPaymentNotFound  = apperror.NotFound("payment")
)

const reconcileBatch = 200

type VerifyPaymentInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	Signature         string
}

// ReconcileReport counts what one reconciliation pass did.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Captured int `json:"captured"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
	Errors   int `json:"errors"`
}

type PaymentService struct {
	payments repo.PaymentRepository
	orders   *OrderService
	gateway  PaymentGateway
	dedupe   EventDeduper
	logger   *logrus.Logger
	expiry   time.Duration
	now      func() time.Time
}

// NewPaymentService wires payments. gateway and dedupe may be nil.
func NewPaymentService(payments repo.PaymentRepository, orders *OrderService, gateway PaymentGateway, dedupe EventDeduper, expiry time.Duration, logger *logrus.Logger) *PaymentService {
	if expiry <= 0 {
		expiry = 2 * time.Hour
	}
	return &PaymentService{
		payments: payments,
		orders:   orders,
		gateway:  gateway,
		dedupe:   dedupe,
		logger:   logger,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Verify handles the checkout callback posted by the client.
func (s *PaymentService) Verify(ctx context.Context, userID string, in VerifyPaymentInput) (*entity.Order, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	p, err := s.payments.GetByRazorpayOrderID(ctx, in.RazorpayOrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	if !s.gateway.VerifyPaymentSignature(in.RazorpayOrderID, in.RazorpayPaymentID, in.Signature) {
		s.logger.WithFields(logrus.Fields{
			"razorpay_order_id": in.RazorpayOrderID, "user_id": userID,
		}).Warn("payment signature mismatch")
		return nil, ErrInvalidSignature
	}

	o, err := s.Capture(ctx, entity.Capture{
		RazorpayOrderID:   in.RazorpayOrderID,
		RazorpayPaymentID: in.RazorpayPaymentID,
		Signature:         in.Signature,
		Source:            entity.PaymentSourceVerify,
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Capture records a captured payment and confirms its order. Repeated
// captures are harmless: the payment flip and the order transition are both
// guarded, so side effects run once.
func (s *PaymentService) Capture(ctx context.Context, c entity.Capture) (*entity.Order, error) {
	log := s.logger.WithFields(logrus.Fields{"razorpay_order_id": c.RazorpayOrderID, "source": c.Source})

	p, err := s.payments.MarkPaid(ctx, c.RazorpayOrderID, c)
	switch {
	case err == nil:
		log.WithField("order_id", p.OrderID.Hex()).Info("payment captured")
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrPaymentNotFound
	case errors.Is(err, repo.ErrConflict):
		p, err = s.payments.GetByRazorpayOrderID(ctx, c.RazorpayOrderID)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		if p.Status != entity.PaymentRecordPaid {
			log.WithField("status", p.Status).Warn("capture ignored for payment in terminal state")
			return s.orderOf(ctx, p)
		}
		log.Debug("payment already captured")
	default:
		return nil, apperror.Internal(err)
	}

	o, moved, err := s.orders.MarkPaid(ctx, p.OrderID, c.Source)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if moved {
		log.WithField("order_id", o.ID.Hex()).Info("order confirmed")
	}
	return o, nil
}

// Fail records a failed attempt; the order stays pending for a retry.
func (s *PaymentService) Fail(ctx context.Context, razorpayOrderID, paymentID, reason, source string) error {
	if reason == "" {
		reason = "payment failed"
	}
	p, err := s.payments.MarkFailed(ctx, razorpayOrderID, paymentID, reason, source)
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		return ErrPaymentNotFound
	case errors.Is(err, repo.ErrConflict):
		// already paid or failed
		return nil
	default:
		return apperror.Internal(err)
	}
	s.logger.WithFields(logrus.Fields{
		"razorpay_order_id": razorpayOrderID, "reason": reason, "source": source,
	}).Info("payment failed")
	if err := s.orders.MarkPaymentFailed(ctx, p.OrderID); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *PaymentService) orderOf(ctx context.Context, p *entity.Payment) (*entity.Order, error) {
	o, err := s.orders.orders.GetByID(ctx, p.OrderID)
	if err != nil {
		return nil, storeErr(err, "order")
	}
	return o, nil
}

type webhookEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorDescription string `json:"error_description"`
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity webhookEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity webhookEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// HandleWebhook processes one Razorpay delivery. A nil error means acknowledge.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) error {
	if s.gateway == nil {
		return ErrPaymentsDisabled
	}
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return ErrInvalidSignature
	}
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return apperror.BadRequest("invalid_payload", "webhook body is not valid json")
	}

	if eventID != "" && s.dedupe != nil {
		first, err := s.dedupe.FirstSeen(ctx, eventID)
		if err != nil {
			s.logger.WithError(err).Warn("webhook dedupe unavailable, processing anyway")
		} else if !first {
			s.logger.WithField("event_id", eventID).Debug("duplicate webhook ignored")
			return nil
		}
	}

	err := s.dispatch(ctx, ev)
	if errors.Is(err, ErrPaymentNotFound) {
		// not one of ours, nothing to retry
		s.logger.WithField("event", ev.Event).Warn("webhook for unknown payment")
		return nil
	}
	if err != nil && eventID != "" && s.dedupe != nil {
		if ferr := s.dedupe.Forget(ctx, eventID); ferr != nil {
			s.logger.WithError(ferr).Warn("webhook dedupe release failed")
		}
	}
	return err
}

func (s *PaymentService) dispatch(ctx context.Context, ev webhookEvent) error {
	pay := ev.Payload.Payment.Entity
	switch ev.Event {
	case "payment.captured":
		_, err := s.Capture(ctx, entity.Capture{
			RazorpayOrderID:   pay.OrderID,
			RazorpayPaymentID: pay.ID,
			Method:            pay.Method,
			Source:            entity.PaymentSourceWebhook,
		})
		return err
	case "order.paid":
		orderID := ev.Payload.Order.Entity.ID
		if orderID == "" {
			orderID = pay.OrderID
		}
		_, err := s.Capture(ctx, entity.Capture{
			RazorpayOrderID:   orderID,
			RazorpayPaymentID: pay.ID,
			Method:            pay.Method,
			Source:            entity.PaymentSourceWebhook,
		})
		return err
	case "payment.failed":
		return s.Fail(ctx, pay.OrderID, pay.ID, pay.ErrorDescription, entity.PaymentSourceWebhook)
	default:
		s.logger.WithField("event", ev.Event).Debug("webhook event ignored")
		return nil
	}
}

func (s *PaymentService) List(ctx context.Context, f entity.PaymentFilter) (entity.Page[entity.Payment], error) {
	page, err := s.payments.List(ctx, f)
	if err != nil {
		return page, apperror.Internal(err)
	}
	return page, nil
}

// Reconcile settles payments stuck in created for longer than olderThan by
// asking Razorpay what happened to them.
func (s *PaymentService) Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	var report ReconcileReport
	if s.gateway == nil {
		return report, ErrPaymentsDisabled
	}
	now := s.now()
	stale, err := s.payments.Stale(ctx, now.Add(-olderThan), reconcileBatch)
	if err != nil {
		return report, apperror.Internal(err)
	}

	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		log := s.logger.WithFields(logrus.Fields{"razorpay_order_id": p.RazorpayOrderID, "order_id": p.OrderID.Hex()})

		attempts, err := s.gateway.OrderPayments(ctx, p.RazorpayOrderID)
		if err != nil {
			report.Errors++
			log.WithError(err).Warn("reconcile fetch failed")
			if errors.Is(err, razorpay.ErrUnavailable) {
				return report, ErrPaymentsDisabled.Wrap(err)
			}
			continue
		}

		outcome, c, reason := settle(attempts)
		switch {
		case outcome == entity.GatewayPaymentCaptured:
			c.RazorpayOrderID = p.RazorpayOrderID
			if _, err := s.Capture(ctx, c); err != nil {
				report.Errors++
				log.WithError(err).Error("reconcile capture failed")
				continue
			}
			report.Captured++
		case outcome == entity.GatewayPaymentFailed,
			len(attempts) == 0 && now.Sub(p.CreatedAt) > s.expiry:
			if reason == "" {
				reason = "payment expired"
			}
			if err := s.Fail(ctx, p.RazorpayOrderID, c.RazorpayPaymentID, reason, entity.PaymentSourceReconcile); err != nil {
				report.Errors++
				log.WithError(err).Error("reconcile fail failed")
				continue
			}
			report.Failed++
		default:
			report.Pending++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"checked": report.Checked, "captured": report.Captured, "failed": report.Failed,
		"pending": report.Pending, "errors": report.Errors,
	}).Info("payment reconciliation finished")
	return report, nil
}

// settle reduces the attempts of one gateway order to captured, failed or "" (undecided).
func settle(attempts []entity.GatewayPayment) (string, entity.Capture, string) {
	if len(attempts) == 0 {
		return "", entity.Capture{}, ""
	}
	allFailed := true
	var last entity.GatewayPayment
	for _, a := range attempts {
		if a.Status == entity.GatewayPaymentCaptured {
			return entity.GatewayPaymentCaptured, entity.Capture{
				RazorpayPaymentID: a.ID,
				Method:            a.Method,
				Source:            entity.PaymentSourceReconcile,
			}, ""
		}
		if a.Status != entity.GatewayPaymentFailed {
			allFailed = false
		}
		last = a
	}
	if allFailed {
		return entity.GatewayPaymentFailed, entity.Capture{RazorpayPaymentID: last.ID}, last.ErrorDescription
	}
	return "", entity.Capture{}, ""
}
