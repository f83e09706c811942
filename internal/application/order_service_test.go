package application

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/razorpay"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
	tpl "github.com/oksasatya/perfume-storefront/pkg/mailer/templates"
)

type commerceFixture struct {
	orders   *OrderService
	payments *PaymentService
	cart     *CartService

	orderRepo   *fakeOrderRepo
	paymentRepo *fakePaymentRepo
	products    *fakeProductRepo
	carts       *fakeCartRepo
	users       *fakeUserRepo
	outbox      *fakeOutbox
	gateway     *fakeGateway
	emails      *fakeEmailQueue
	dedupe      *fakeDeduper
	cache       *fakeResultCache

	user *entity.User
}

func newCommerceFixture(t *testing.T) *commerceFixture {
	t.Helper()
	f := &commerceFixture{
		orderRepo:   newFakeOrderRepo(),
		paymentRepo: newFakePaymentRepo(),
		products:    newFakeProductRepo(),
		carts:       newFakeCartRepo(),
		users:       newFakeUserRepo(),
		outbox:      &fakeOutbox{},
		gateway:     newFakeGateway(),
		emails:      &fakeEmailQueue{},
		dedupe:      newFakeDeduper(),
		cache:       newFakeResultCache(),
	}
	logger := helpers.NopLogger()
	cfg := &config.Config{MailSendEnabled: true, AppName: "perfume-storefront", OrderURL: "https://shop.example.com/orders"}

	f.user = &entity.User{Email: "asha@example.com", Name: "Asha", Roles: []string{entity.RoleCustomer}}
	require.NoError(t, f.users.Create(context.Background(), f.user))

	f.cart = NewCartService(f.carts, f.products, nil, logger)
	f.orders = NewOrderService(OrderServiceDeps{
		Orders:                f.orderRepo,
		Payments:              f.paymentRepo,
		Products:              f.products,
		Users:                 f.users,
		Outbox:                f.outbox,
		Cart:                  f.cart,
		Gateway:               f.gateway,
		Notifier:              NewNotifier(f.emails, cfg, logger),
		ProductCache:          f.cache,
		Logger:                logger,
		Currency:              "INR",
		ShippingFee:           99,
		FreeShippingThreshold: 999,
	})
	f.payments = NewPaymentService(f.paymentRepo, f.orders, f.gateway, f.dedupe, 0, logger)
	return f
}

// fill puts qty units of a fresh product priced at price into the user's cart.
func (f *commerceFixture) fill(t *testing.T, name string, price float64, stock, qty int) *entity.Product {
	t.Helper()
	p := f.products.add(entity.Product{Name: name, Price: price, Stock: stock, IsActive: true})
	_, err := f.cart.AddItem(context.Background(), f.user.ID, p.ID.Hex(), qty)
	require.NoError(t, err)
	return p
}

func address() entity.Address {
	return entity.Address{
		FullName: "Asha Rao", Phone: "+919800000000", Line1: "12 MG Road",
		City: "Pune", State: "MH", PostalCode: "411001", Country: "IN",
	}
}

func TestCreateOrder_Razorpay(t *testing.T) {
	f := newCommerceFixture(t)
	p := f.fill(t, "Oud Wood", 450.25, 5, 2)

	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})
	require.NoError(t, err)

	o := res.Order
	assert.Regexp(t, `^ORD-\d{8}-[A-Z2-9]{6}$`, o.OrderNumber)
	assert.Equal(t, 900.5, o.Subtotal)
	assert.Equal(t, 99.0, o.ShippingFee)
	assert.Equal(t, 999.5, o.Total)
	assert.Equal(t, entity.OrderPending, o.Status)
	assert.Equal(t, entity.PaymentPending, o.PaymentStatus)

	require.NotNil(t, res.Payment)
	assert.Equal(t, "rzp_test_key", res.Payment.KeyID)
	assert.Equal(t, int64(99950), res.Payment.Amount)
	assert.Equal(t, o.RazorpayOrderID, res.Payment.RazorpayOrderID)

	pay := f.paymentRepo.get(res.Payment.RazorpayOrderID)
	require.NotNil(t, pay)
	assert.Equal(t, entity.PaymentRecordCreated, pay.Status)
	assert.Equal(t, 1, pay.Attempt)

	assert.Equal(t, 5, f.products.stock(p.ID), "stock is only taken once paid")
	assert.Equal(t, []string{entity.EventOrderCreated}, f.outbox.types())
	assert.NotEmpty(t, f.carts.carts[f.user.ID].Items, "cart is kept until payment")
}

func TestCreateOrder_FreeShippingAtThreshold(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Amber", 333, 5, 3)

	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})

	require.NoError(t, err)
	assert.Zero(t, res.Order.ShippingFee)
	assert.Equal(t, 999.0, res.Order.Total)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newCommerceFixture(t)
	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	assertCode(t, err, http.StatusBadRequest, "cart_empty")
}

func TestCreateOrder_InsufficientStockDetails(t *testing.T) {
	f := newCommerceFixture(t)
	p := f.fill(t, "Saffron", 100, 5, 4)
	f.products.items[p.ID].Stock = 2

	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})

	assertCode(t, err, http.StatusConflict, "insufficient_stock")
	issues := apperror.From(err).Details.([]StockIssue)
	require.Len(t, issues, 1)
	assert.Equal(t, StockIssue{ProductID: p.ID.Hex(), Name: "Saffron", Requested: 4, Available: 2, Reason: "insufficient_stock"}, issues[0])
	assert.Empty(t, f.orderRepo.orders)
}

func TestCreateOrder_UnknownMethod(t *testing.T) {
	f := newCommerceFixture(t)
	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{PaymentMethod: "bitcoin"})
	assertCode(t, err, http.StatusBadRequest, "validation_failed")
}

func TestCreateOrder_GatewayDownKeepsOrder(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Vetiver", 1200, 5, 1)
	f.gateway.createErr = errors.New("razorpay: 500")

	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})

	assertCode(t, err, http.StatusBadGateway, "payment_initiation_failed")
	details := apperror.From(err).Details.(map[string]string)
	require.Len(t, f.orderRepo.orders, 1)
	for id, o := range f.orderRepo.orders {
		assert.Equal(t, id.Hex(), details["order_id"])
		assert.Equal(t, entity.OrderPending, o.Status)
		assert.Equal(t, entity.PaymentFailed, o.PaymentStatus)
	}

	f.gateway.createErr = nil
	res, err := f.orders.Pay(context.Background(), f.user.ID, details["order_id"])
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, res.Payment.RazorpayOrderID, res.Order.RazorpayOrderID)
}

func TestCreateOrder_BreakerOpen(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Vetiver", 1200, 5, 1)
	f.gateway.createErr = razorpay.ErrUnavailable

	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})

	assertCode(t, err, http.StatusServiceUnavailable, "payment_gateway_unavailable")
}

func TestCreateOrder_COD(t *testing.T) {
	f := newCommerceFixture(t)
	p := f.fill(t, "Rose", 1500, 5, 2)

	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)

	assert.Nil(t, res.Payment)
	assert.Equal(t, entity.OrderConfirmed, res.Order.Status)
	assert.Equal(t, entity.PaymentPending, res.Order.PaymentStatus)
	require.Len(t, res.Order.StatusHistory, 1)
	assert.Equal(t, "confirmed", res.Order.StatusHistory[0].To)
	assert.Equal(t, 3, f.products.stock(p.ID))
	assert.Empty(t, f.carts.carts)

	job, ok := f.emails.last(tpl.OrderConfirmation)
	require.True(t, ok)
	assert.Equal(t, "asha@example.com", job.To)
}

func TestPay_RejectsNonPending(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Rose", 1500, 5, 1)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)

	_, err = f.orders.Pay(context.Background(), f.user.ID, res.Order.ID.Hex())

	assertCode(t, err, http.StatusConflict, "order_not_payable")
}

func TestPay_ReusesOpenGatewayOrder(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Rose", 1500, 5, 1)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})
	require.NoError(t, err)
	require.Len(t, f.gateway.created, 1)

	again, err := f.orders.Pay(context.Background(), f.user.ID, res.Order.ID.Hex())
	require.NoError(t, err)

	assert.Len(t, f.gateway.created, 1, "no second gateway order for an open attempt")
	assert.Equal(t, res.Payment.RazorpayOrderID, again.Payment.RazorpayOrderID)
	assert.Equal(t, res.Payment.Amount, again.Payment.Amount)
	assert.Equal(t, "rzp_test_key", again.Payment.KeyID)
	assert.Len(t, f.paymentRepo.payments, 1)
}

func TestPay_NewAttemptAfterFailure(t *testing.T) {
	f := newCommerceFixture(t)
	ctx := context.Background()
	order, _, rzpID := f.checkout(t, 5, 1)
	failed := webhookBody(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_f","order_id":"%s","status":"failed","error_description":"card declined"}}}}`, rzpID)
	require.NoError(t, f.payments.HandleWebhook(ctx, failed, "sig", "evt_fail"))

	res, err := f.orders.Pay(ctx, f.user.ID, order.ID.Hex())
	require.NoError(t, err)

	assert.Len(t, f.gateway.created, 2)
	assert.NotEqual(t, rzpID, res.Payment.RazorpayOrderID)
	assert.Equal(t, entity.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, res.Payment.RazorpayOrderID, res.Order.RazorpayOrderID)
	assert.Equal(t, 2, f.paymentRepo.get(res.Payment.RazorpayOrderID).Attempt)
	assert.Equal(t, entity.PaymentRecordFailed, f.paymentRepo.get(rzpID).Status)
}

func TestPay_GatewayDisabled(t *testing.T) {
	f := newCommerceFixture(t)
	order, _, _ := f.checkout(t, 5, 1)
	f.orders.gateway = nil

	_, err := f.orders.Pay(context.Background(), f.user.ID, order.ID.Hex())

	assertCode(t, err, http.StatusServiceUnavailable, "payment_gateway_unavailable")
}

func TestGetOrder_Ownership(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Rose", 1500, 5, 1)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)
	id := res.Order.ID.Hex()

	_, err = f.orders.Get(context.Background(), "someone-else", entity.RoleCustomer, id)
	assertCode(t, err, http.StatusNotFound, "not_found")

	o, err := f.orders.Get(context.Background(), "admin-id", entity.RoleAdmin, id)
	require.NoError(t, err)
	assert.Equal(t, res.Order.OrderNumber, o.OrderNumber)
}

func TestCancel_ConfirmedRestoresStock(t *testing.T) {
	f := newCommerceFixture(t)
	p := f.fill(t, "Jasmine", 700, 4, 3)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)
	require.Equal(t, 1, f.products.stock(p.ID))

	o, err := f.orders.Cancel(context.Background(), f.user.ID, res.Order.ID.Hex(), "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, entity.OrderCancelled, o.Status)
	assert.Equal(t, "changed my mind", o.CancelReason)
	assert.Equal(t, 4, f.products.stock(p.ID))
	assert.Zero(t, f.orderRepo.orders[o.ID].Items[0].StockTaken)
	assert.Equal(t, 2, f.cache.invalidated, "take and restore both drop cached products")
	assert.Contains(t, f.outbox.types(), entity.EventOrderCancelled)
	_, ok := f.emails.last(tpl.OrderStatus)
	assert.True(t, ok)
}

func TestCancel_PendingKeepsStock(t *testing.T) {
	f := newCommerceFixture(t)
	p := f.fill(t, "Jasmine", 700, 4, 3)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "razorpay"})
	require.NoError(t, err)

	_, err = f.orders.Cancel(context.Background(), f.user.ID, res.Order.ID.Hex(), "")
	require.NoError(t, err)

	assert.Equal(t, 4, f.products.stock(p.ID))
}

func TestCancel_ShippedIsRejected(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Jasmine", 700, 4, 1)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(context.Background(), "admin-1", res.Order.ID.Hex(), entity.OrderShipped, "dispatched")
	require.NoError(t, err)

	_, err = f.orders.Cancel(context.Background(), f.user.ID, res.Order.ID.Hex(), "too late")

	assertCode(t, err, http.StatusConflict, "invalid_transition")
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Lavender", 300, 4, 1)
	res, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)
	id := res.Order.ID.Hex()
	ctx := context.Background()

	_, err = f.orders.UpdateStatus(ctx, "admin-1", id, entity.OrderDelivered, "")
	assertCode(t, err, http.StatusConflict, "invalid_transition")

	_, err = f.orders.UpdateStatus(ctx, "admin-1", id, "teleported", "")
	assertCode(t, err, http.StatusBadRequest, "validation_failed")

	o, err := f.orders.UpdateStatus(ctx, "admin-1", id, entity.OrderProcessing, "packing")
	require.NoError(t, err)
	o, err = f.orders.UpdateStatus(ctx, "admin-1", id, entity.OrderShipped, "")
	require.NoError(t, err)
	o, err = f.orders.UpdateStatus(ctx, "admin-1", id, entity.OrderDelivered, "")
	require.NoError(t, err)

	assert.Equal(t, entity.OrderDelivered, o.Status)
	require.Len(t, o.StatusHistory, 4)
	assert.Equal(t, "admin:admin-1", o.StatusHistory[1].By)
	assert.Equal(t, "packing", o.StatusHistory[1].Note)

	_, err = f.orders.UpdateStatus(ctx, "admin-1", id, entity.OrderCancelled, "")
	assertCode(t, err, http.StatusConflict, "invalid_transition")
}

func TestStats(t *testing.T) {
	f := newCommerceFixture(t)
	f.fill(t, "Lavender", 300, 4, 1)
	_, err := f.orders.Create(context.Background(), f.user.ID, CreateOrderInput{ShippingAddress: address(), PaymentMethod: "cod"})
	require.NoError(t, err)

	st, err := f.orders.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalOrders)
	assert.Equal(t, int64(1), st.ByStatus["confirmed"])
}
