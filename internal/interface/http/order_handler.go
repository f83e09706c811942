package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type OrderHandler struct {
	Svc *application.OrderService
}

func NewOrderHandler(svc *application.OrderService) *OrderHandler {
	return &OrderHandler{Svc: svc}
}

type createOrderRequest struct {
	ShippingAddress entity.Address `json:"shipping_address" binding:"required"`
	PaymentMethod   string         `json:"payment_method" binding:"omitempty,oneof=razorpay cod"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	Note   string `json:"note" binding:"max=500"`
}

// Create POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Svc.Create(c.Request.Context(), userID(c), application.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res, "order created", nil)
}

// Pay POST /api/orders/:id/pay
func (h *OrderHandler) Pay(c *gin.Context) {
	res, err := h.Svc.Pay(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "payment initiated", nil)
}

// ListMine GET /api/orders/me
func (h *OrderHandler) ListMine(c *gin.Context) {
	q := listQuery(c)
	page, err := h.Svc.ListMine(c.Request.Context(), userID(c), entity.OrderFilter{
		ListQuery: q,
		Status:    entity.OrderStatus(strings.ToLower(c.Query("status"))),
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "orders", pageMeta(q))
}

// Get GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.Svc.Get(c.Request.Context(), userID(c), userRole(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, o, "order", nil)
}

// Cancel POST /api/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelOrderRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	o, err := h.Svc.Cancel(c.Request.Context(), userID(c), c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, o, "order cancelled", nil)
}

// List GET /api/admin/orders
func (h *OrderHandler) List(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		fail(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		fail(c, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		fail(c, apperror.Validation(map[string]string{"to": "must not be before from"}))
		return
	}
	q := listQuery(c)
	page, err := h.Svc.List(c.Request.Context(), entity.OrderFilter{
		ListQuery:     q,
		UserID:        c.Query("user_id"),
		Status:        entity.OrderStatus(strings.ToLower(c.Query("status"))),
		PaymentStatus: entity.PaymentStatus(strings.ToLower(c.Query("payment_status"))),
		From:          from,
		To:            to,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "orders", pageMeta(q))
}

// UpdateStatus PATCH /api/admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Svc.UpdateStatus(c.Request.Context(), userID(c), c.Param("id"), entity.OrderStatus(req.Status), req.Note)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, o, "order status updated", nil)
}

// Stats GET /api/admin/stats
func (h *OrderHandler) Stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, st, "order stats", nil)
}
