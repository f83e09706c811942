package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

type PaymentHandler struct {
	Svc *application.PaymentService
}

func NewPaymentHandler(svc *application.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// Verify POST /api/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req verifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Svc.Verify(c.Request.Context(), userID(c), application.VerifyPaymentInput{
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		Signature:         req.RazorpaySignature,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, o, "payment verified", nil)
}

// Webhook POST /api/payments/webhook. The signature covers the raw body, so it
// is read before any decoding.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, apperror.New(http.StatusRequestEntityTooLarge, "payload_too_large", "webhook body exceeds the size limit"))
			return
		}
		fail(c, apperror.BadRequest("invalid_payload", "could not read body"))
		return
	}
	sig := strings.TrimSpace(c.GetHeader(HeaderRazorpaySignature))
	eventID := strings.TrimSpace(c.GetHeader(HeaderRazorpayEventID))
	if err := h.Svc.HandleWebhook(c.Request.Context(), body, sig, eventID); err != nil {
		fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"received": true}, "ok", nil)
}

// List GET /api/admin/payments
func (h *PaymentHandler) List(c *gin.Context) {
	q := listQuery(c)
	f := entity.PaymentFilter{
		ListQuery: q,
		Status:    entity.PaymentRecordStatus(strings.ToLower(c.Query("status"))),
	}
	if v := c.Query("order_id"); v != "" {
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			fail(c, apperror.Validation(map[string]string{"order_id": "must be a valid id"}))
			return
		}
		f.OrderID = oid
	}
	page, err := h.Svc.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "payments", pageMeta(q))
}
