package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
)

// CommerceModule groups cart, orders and payments.
type CommerceModule struct {
	Cart     *handlers.CartHandler
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
	Guard    Guard
}

func NewCommerceModule(cart *handlers.CartHandler, orders *handlers.OrderHandler, payments *handlers.PaymentHandler, g Guard) *CommerceModule {
	return &CommerceModule{Cart: cart, Orders: orders, Payments: payments, Guard: g}
}

func (m *CommerceModule) Register(rg *gin.RouterGroup) {
	// Razorpay calls this; it authenticates by signature.
	rg.POST("/payments/webhook", m.Guard.ipLimit("webhook", 300), m.Payments.Webhook)

	auth := m.Guard.Protected(rg)
	{
		auth.GET("/cart", m.Cart.View)
		auth.POST("/cart/items", m.Cart.AddItem)
		auth.PATCH("/cart/items/:productId", m.Cart.UpdateItem)
		auth.DELETE("/cart/items/:productId", m.Cart.RemoveItem)
		auth.DELETE("/cart", m.Cart.Clear)

		auth.POST("/orders", m.Orders.Create)
		auth.GET("/orders/me", m.Orders.ListMine)
		auth.GET("/orders/:id", m.Orders.Get)
		auth.POST("/orders/:id/pay", m.Orders.Pay)
		auth.POST("/orders/:id/cancel", m.Orders.Cancel)

		auth.POST("/payments/verify", m.Payments.Verify)
	}

	admin := m.Guard.Admin(rg)
	{
		admin.GET("/orders", m.Orders.List)
		admin.PATCH("/orders/:id/status", m.Orders.UpdateStatus)
		admin.GET("/stats", m.Orders.Stats)
		admin.GET("/payments", m.Payments.List)
	}
}
