package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type CartHandler struct {
	Svc *application.CartService
}

func NewCartHandler(svc *application.CartService) *CartHandler {
	return &CartHandler{Svc: svc}
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required,objectid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=10"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=10"`
}

func (h *CartHandler) View(c *gin.Context) {
	v, err := h.Svc.View(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, v, "cart", nil)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req addCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.Svc.AddItem(c.Request.Context(), userID(c), req.ProductID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, v, "item added", nil)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req updateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.Svc.UpdateItem(c.Request.Context(), userID(c), c.Param("productId"), req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, v, "item updated", nil)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	v, err := h.Svc.RemoveItem(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, v, "item removed", nil)
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.Svc.Clear(c.Request.Context(), userID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"cleared": true}, "cart cleared", nil)
}
