package application

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/razorpay"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

var (
	ErrCartEmpty          = apperror.BadRequest("cart_empty", "cart is empty")
	ErrOrderNotFound      = apperror.NotFound("order")
	ErrPaymentsDisabled   = apperror.Unavailable("payment_gateway_unavailable", "online payments are not available")
	ErrOrderChanged       = apperror.Conflict("order_changed", "order was modified concurrently, retry")
	ErrNotPayable         = apperror.Conflict("order_not_payable", "order cannot be paid in its current state")
	ErrInvalidOrderStatus = apperror.Validation(map[string]string{"status": "unknown order status"})
)

const orderCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type CreateOrderInput struct {
	ShippingAddress entity.Address
	PaymentMethod   string
}

// Checkout holds what the client needs to open the Razorpay checkout.
type Checkout struct {
	KeyID           string `json:"key_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

type CheckoutResult struct {
	Order   *entity.Order `json:"order"`
	Payment *Checkout     `json:"payment,omitempty"`
}

// OrderEvent is the payload written to the outbox.
type OrderEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PreviousState string    `json:"previous_status,omitempty"`
	Total         float64   `json:"total"`
	Currency      string    `json:"currency"`
	At            time.Time `json:"at"`
}

type OrderService struct {
	orders   repo.OrderRepository
	payments repo.PaymentRepository
	products repo.ProductRepository
	users    repo.UserRepository
	outbox   repo.OutboxRepository
	cart     *CartService
	gateway  PaymentGateway
	notify   *Notifier
	logger   *logrus.Logger

	productCache ResultCache

	currency          string
	shippingFee       decimal.Decimal
	freeShippingAbove decimal.Decimal
	now               func() time.Time
}

type OrderServiceDeps struct {
	Orders                repo.OrderRepository
	Payments              repo.PaymentRepository
	Products              repo.ProductRepository
	Users                 repo.UserRepository
	Outbox                repo.OutboxRepository
	Cart                  *CartService
	Gateway               PaymentGateway // nil disables razorpay checkout
	Notifier              *Notifier
	ProductCache          ResultCache // catalog product reads; dropped after stock moves
	Logger                *logrus.Logger
	Currency              string
	ShippingFee           float64
	FreeShippingThreshold float64
}

func NewOrderService(d OrderServiceDeps) *OrderService {
	currency := d.Currency
	if currency == "" {
		currency = "INR"
	}
	return &OrderService{
		orders:            d.Orders,
		payments:          d.Payments,
		products:          d.Products,
		users:             d.Users,
		outbox:            d.Outbox,
		cart:              d.Cart,
		gateway:           d.Gateway,
		notify:            d.Notifier,
		productCache:      d.ProductCache,
		logger:            d.Logger,
		currency:          currency,
		shippingFee:       helpers.Money(d.ShippingFee),
		freeShippingAbove: helpers.Money(d.FreeShippingThreshold),
		now:               time.Now,
	}
}

// orderNumber returns ORD-YYYYMMDD-XXXXXX.
func orderNumber(t time.Time) (string, error) {
	var b strings.Builder
	b.WriteString("ORD-")
	b.WriteString(t.UTC().Format("20060102"))
	b.WriteByte('-')
	base := big.NewInt(int64(len(orderCodeAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b.WriteByte(orderCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// StockIssue explains why a cart line cannot be ordered.
type StockIssue struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

// priceItems snapshots the cart into order lines and checks availability.
func (s *OrderService) priceItems(ctx context.Context, cart *entity.Cart) ([]entity.OrderItem, decimal.Decimal, error) {
	products, err := s.products.GetByIDs(ctx, cart.ProductIDs())
	if err != nil {
		return nil, decimal.Zero, apperror.Internal(err)
	}
	byID := make(map[primitive.ObjectID]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var (
		items    = make([]entity.OrderItem, 0, len(cart.Items))
		issues   []StockIssue
		subtotal = decimal.Zero
	)
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		switch {
		case !ok:
			issues = append(issues, StockIssue{ProductID: it.ProductID.Hex(), Requested: it.Quantity, Reason: "removed"})
			continue
		case !p.IsActive:
			issues = append(issues, StockIssue{ProductID: p.ID.Hex(), Name: p.Name, Requested: it.Quantity, Available: 0, Reason: "inactive"})
			continue
		case p.Stock < it.Quantity:
			issues = append(issues, StockIssue{ProductID: p.ID.Hex(), Name: p.Name, Requested: it.Quantity, Available: p.Stock, Reason: "insufficient_stock"})
			continue
		}
		line := helpers.LineTotal(p.EffectivePrice(), it.Quantity)
		subtotal = subtotal.Add(line)
		items = append(items, entity.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.PrimaryImage(),
			UnitPrice: helpers.Float(helpers.Money(p.EffectivePrice())),
			Quantity:  it.Quantity,
			LineTotal: helpers.Float(line),
		})
	}
	if len(issues) > 0 {
		return nil, decimal.Zero, ErrInsufficientStock.WithDetails(issues)
	}
	return items, subtotal, nil
}

func (s *OrderService) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if s.freeShippingAbove.IsPositive() && subtotal.GreaterThanOrEqual(s.freeShippingAbove) {
		return decimal.Zero
	}
	return s.shippingFee
}

// Create turns the caller's cart into an order.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*CheckoutResult, error) {
	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = entity.PaymentMethodRazorpay
	}
	if method != entity.PaymentMethodRazorpay && method != entity.PaymentMethodCOD {
		return nil, apperror.Validation(map[string]string{"payment_method": "must be one of: razorpay, cod"})
	}
	if method == entity.PaymentMethodRazorpay && s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}

	cart, err := s.cart.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}
	items, subtotal, err := s.priceItems(ctx, cart)
	if err != nil {
		return nil, err
	}
	shipping := s.shippingFor(subtotal)

	o := &entity.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		Subtotal:        helpers.Float(subtotal),
		ShippingFee:     helpers.Float(shipping),
		Total:           helpers.Float(subtotal.Add(shipping)),
		Currency:        s.currency,
		PaymentMethod:   method,
		Status:          entity.OrderPending,
		PaymentStatus:   entity.PaymentPending,
	}
	if err := s.insert(ctx, o); err != nil {
		return nil, err
	}
	s.emit(ctx, entity.EventOrderCreated, o, "")
	s.logger.WithFields(logrus.Fields{
		"order_id": o.ID.Hex(), "order_number": o.OrderNumber, "total": o.Total, "method": method,
	}).Info("order created")

	if method == entity.PaymentMethodCOD {
		confirmed, err := s.confirmCOD(ctx, o)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: confirmed}, nil
	}

	checkout, err := s.initiatePayment(ctx, o)
	if err != nil {
		return nil, err
	}
	if fresh, err := s.orders.GetByID(ctx, o.ID); err == nil {
		o = fresh
	}
	return &CheckoutResult{Order: o, Payment: checkout}, nil
}

// insert stores o under a fresh order number, retrying on the rare collision.
func (s *OrderService) insert(ctx context.Context, o *entity.Order) error {
	for attempt := 0; attempt < 3; attempt++ {
		num, err := orderNumber(s.now())
		if err != nil {
			return apperror.Internal(err)
		}
		o.OrderNumber = num
		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return apperror.Internal(err)
		}
	}
	return apperror.Internal(errors.New("could not allocate an order number"))
}

func (s *OrderService) confirmCOD(ctx context.Context, o *entity.Order) (*entity.Order, error) {
	confirmed, err := s.orders.Transition(ctx, o.ID, entity.OrderTransition{
		FromStatuses: []entity.OrderStatus{entity.OrderPending},
		To:           entity.OrderConfirmed,
		Change:       s.change(entity.OrderPending, entity.OrderConfirmed, "system", "cash on delivery"),
	})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.takeStock(ctx, confirmed)
	s.clearCart(ctx, confirmed.UserID)
	s.notifyConfirmation(ctx, confirmed)
	return confirmed, nil
}

// initiatePayment opens a Razorpay order for o and records the attempt.
func (s *OrderService) initiatePayment(ctx context.Context, o *entity.Order) (*Checkout, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	attempts, err := s.payments.CountForOrder(ctx, o.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	amount := helpers.Money(o.Total)
	amountMinor := helpers.ToMinorUnits(amount)

	gw, err := s.gateway.CreateOrder(ctx, amountMinor, o.Currency, o.OrderNumber, map[string]string{
		"order_id": o.ID.Hex(),
		"user_id":  o.UserID,
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("razorpay order creation failed")
		if _, terr := s.orders.Transition(ctx, o.ID, entity.OrderTransition{
			FromStatuses:        []entity.OrderStatus{entity.OrderPending},
			FromPaymentStatuses: []entity.PaymentStatus{entity.PaymentPending},
			ToPayment:           entity.PaymentFailed,
		}); terr != nil && !errors.Is(terr, repo.ErrConflict) {
			s.logger.WithError(terr).WithField("order_id", o.ID.Hex()).Warn("could not flag payment failure")
		}
		details := map[string]string{"order_id": o.ID.Hex()}
		if errors.Is(err, razorpay.ErrUnavailable) {
			return nil, ErrPaymentsDisabled.WithDetails(details).Wrap(err)
		}
		return nil, apperror.BadGateway("payment_initiation_failed", "could not start payment, retry later").
			WithDetails(details).Wrap(err)
	}

	p := &entity.Payment{
		OrderID:         o.ID,
		UserID:          o.UserID,
		RazorpayOrderID: gw.ID,
		Amount:          helpers.Float(amount),
		AmountMinor:     amountMinor,
		Currency:        o.Currency,
		Status:          entity.PaymentRecordCreated,
		Attempt:         int(attempts) + 1,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, apperror.Internal(err)
	}
	if _, err := s.orders.Transition(ctx, o.ID, entity.OrderTransition{
		FromStatuses:        []entity.OrderStatus{entity.OrderPending},
		FromPaymentStatuses: []entity.PaymentStatus{entity.PaymentPending, entity.PaymentFailed},
		ToPayment:           entity.PaymentPending,
		RazorpayOrderID:     gw.ID,
	}); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrNotPayable
		}
		return nil, apperror.Internal(err)
	}

	return &Checkout{
		KeyID:           s.gateway.KeyID(),
		RazorpayOrderID: gw.ID,
		Amount:          amountMinor,
		Currency:        o.Currency,
	}, nil
}

// Pay hands back the still-open gateway order for a pending razorpay order,
// or starts a new attempt when the last one failed.
func (s *OrderService) Pay(ctx context.Context, userID, orderID string) (*CheckoutResult, error) {
	o, err := s.owned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentMethod != entity.PaymentMethodRazorpay || o.Status != entity.OrderPending ||
		(o.PaymentStatus != entity.PaymentPending && o.PaymentStatus != entity.PaymentFailed) {
		return nil, ErrNotPayable
	}
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	if checkout := s.openCheckout(ctx, o); checkout != nil {
		return &CheckoutResult{Order: o, Payment: checkout}, nil
	}
	checkout, err := s.initiatePayment(ctx, o)
	if err != nil {
		return nil, err
	}
	if fresh, err := s.orders.GetByID(ctx, o.ID); err == nil {
		o = fresh
	}
	return &CheckoutResult{Order: o, Payment: checkout}, nil
}

// openCheckout returns the latest attempt when it is unpaid and matches the order.
func (s *OrderService) openCheckout(ctx context.Context, o *entity.Order) *Checkout {
	if o.PaymentStatus != entity.PaymentPending || o.RazorpayOrderID == "" {
		return nil
	}
	p, err := s.payments.LatestForOrder(ctx, o.ID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Warn("latest payment lookup failed")
		}
		return nil
	}
	amountMinor := helpers.ToMinorUnits(helpers.Money(o.Total))
	if p.Status != entity.PaymentRecordCreated || p.RazorpayOrderID != o.RazorpayOrderID || p.AmountMinor != amountMinor {
		return nil
	}
	return &Checkout{
		KeyID:           s.gateway.KeyID(),
		RazorpayOrderID: p.RazorpayOrderID,
		Amount:          p.AmountMinor,
		Currency:        p.Currency,
	}
}

func (s *OrderService) load(ctx context.Context, id string) (*entity.Order, error) {
	oid, err := parseID(id, "order")
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, oid)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return o, nil
}

// owned loads the order and hides it from anyone but its owner.
func (s *OrderService) owned(ctx context.Context, userID, id string) (*entity.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Get returns the order to its owner, or to an admin.
func (s *OrderService) Get(ctx context.Context, userID, role, id string) (*entity.Order, error) {
	if role == entity.RoleAdmin {
		return s.load(ctx, id)
	}
	return s.owned(ctx, userID, id)
}

func (s *OrderService) ListMine(ctx context.Context, userID string, f entity.OrderFilter) (entity.Page[entity.Order], error) {
	f.UserID = userID
	return s.List(ctx, f)
}

func (s *OrderService) List(ctx context.Context, f entity.OrderFilter) (entity.Page[entity.Order], error) {
	if f.Status != "" && !f.Status.Valid() {
		return entity.Page[entity.Order]{}, ErrInvalidOrderStatus
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return entity.Page[entity.Order]{}, apperror.Validation(map[string]string{"payment_status": "unknown payment status"})
	}
	page, err := s.orders.List(ctx, f)
	if err != nil {
		return page, apperror.Internal(err)
	}
	return page, nil
}

// Cancel is the customer cancellation. Only pending and confirmed orders qualify.
func (s *OrderService) Cancel(ctx context.Context, userID, id, reason string) (*entity.Order, error) {
	o, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CustomerCancellable() {
		return nil, apperror.InvalidTransition(o.Status.String(), entity.OrderCancelled.String())
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "cancelled by customer"
	}
	return s.cancel(ctx, o, "customer:"+userID, reason)
}

func (s *OrderService) cancel(ctx context.Context, o *entity.Order, by, reason string) (*entity.Order, error) {
	t := entity.OrderTransition{
		FromStatuses:        []entity.OrderStatus{o.Status},
		FromPaymentStatuses: []entity.PaymentStatus{o.PaymentStatus},
		To:                  entity.OrderCancelled,
		CancelReason:        reason,
		Change:              s.change(o.Status, entity.OrderCancelled, by, reason),
	}
	if o.PaymentStatus == entity.PaymentPaid {
		t.ToPayment = entity.PaymentRefunded
	}
	updated, err := s.orders.Transition(ctx, o.ID, t)
	if errors.Is(err, repo.ErrConflict) {
		return nil, ErrOrderChanged
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	if o.Status.HoldsStock() {
		s.restoreStock(ctx, updated)
	}
	if t.ToPayment == entity.PaymentRefunded {
		if err := s.payments.MarkRefunded(ctx, o.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("mark payment refunded failed")
		}
		s.logger.WithField("order_id", o.ID.Hex()).Warn("paid order cancelled, refund must be issued manually")
	}
	s.emit(ctx, entity.EventOrderCancelled, updated, o.Status.String())
	s.notifyStatus(ctx, updated, reason)
	return updated, nil
}

// UpdateStatus is the admin status change, guarded by the transition table.
func (s *OrderService) UpdateStatus(ctx context.Context, actorID, id string, to entity.OrderStatus, note string) (*entity.Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidOrderStatus
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(to) {
		return nil, apperror.InvalidTransition(o.Status.String(), to.String())
	}
	by := "admin:" + actorID
	if to == entity.OrderCancelled {
		reason := strings.TrimSpace(note)
		if reason == "" {
			reason = "cancelled by store"
		}
		return s.cancel(ctx, o, by, reason)
	}

	updated, err := s.orders.Transition(ctx, o.ID, entity.OrderTransition{
		FromStatuses: []entity.OrderStatus{o.Status},
		To:           to,
		Change:       s.change(o.Status, to, by, note),
	})
	if errors.Is(err, repo.ErrConflict) {
		return nil, ErrOrderChanged
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if !o.Status.HoldsStock() && to.HoldsStock() {
		s.takeStock(ctx, updated)
	}
	s.emit(ctx, entity.EventOrderStatusChanged, updated, o.Status.String())
	s.notifyStatus(ctx, updated, note)
	return updated, nil
}

// Stats summarizes orders; "today" starts at midnight UTC.
func (s *OrderService) Stats(ctx context.Context) (entity.OrderStats, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	st, err := s.orders.Stats(ctx, midnight)
	if err != nil {
		return st, apperror.Internal(err)
	}
	return st, nil
}

// MarkPaid confirms the order behind a captured payment. It returns the order
// and whether this call moved it; only the mover runs the side effects.
func (s *OrderService) MarkPaid(ctx context.Context, orderID primitive.ObjectID, source string) (*entity.Order, bool, error) {
	by := "system:" + source
	o, err := s.orders.Transition(ctx, orderID, entity.OrderTransition{
		FromStatuses:        []entity.OrderStatus{entity.OrderPending},
		FromPaymentStatuses: []entity.PaymentStatus{entity.PaymentPending, entity.PaymentFailed},
		To:                  entity.OrderConfirmed,
		ToPayment:           entity.PaymentPaid,
		Change:              s.change(entity.OrderPending, entity.OrderConfirmed, by, "payment captured"),
	})
	if err == nil {
		s.takeStock(ctx, o)
		s.clearCart(ctx, o.UserID)
		s.emit(ctx, entity.EventOrderPaid, o, entity.OrderPending.String())
		s.notifyConfirmation(ctx, o)
		return o, true, nil
	}
	if !errors.Is(err, repo.ErrConflict) {
		return nil, false, err
	}

	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if current.Status == entity.OrderCancelled && current.PaymentStatus != entity.PaymentPaid && current.PaymentStatus != entity.PaymentRefunded {
		// money arrived after the customer cancelled
		o, err := s.orders.Transition(ctx, orderID, entity.OrderTransition{
			FromStatuses:        []entity.OrderStatus{entity.OrderCancelled},
			FromPaymentStatuses: []entity.PaymentStatus{current.PaymentStatus},
			ToPayment:           entity.PaymentPaid,
			Change:              s.change(entity.OrderCancelled, entity.OrderCancelled, by, "payment captured after cancellation, refund required"),
		})
		if err != nil && !errors.Is(err, repo.ErrConflict) {
			return nil, false, err
		}
		s.logger.WithField("order_id", orderID.Hex()).Warn("payment captured for cancelled order, refund required")
		if o != nil {
			return o, false, nil
		}
	}
	return current, false, nil
}

// MarkPaymentFailed flags a pending order payment as failed. The order stays pending.
func (s *OrderService) MarkPaymentFailed(ctx context.Context, orderID primitive.ObjectID) error {
	_, err := s.orders.Transition(ctx, orderID, entity.OrderTransition{
		FromStatuses:        []entity.OrderStatus{entity.OrderPending},
		FromPaymentStatuses: []entity.PaymentStatus{entity.PaymentPending},
		ToPayment:           entity.PaymentFailed,
	})
	if errors.Is(err, repo.ErrConflict) {
		return nil
	}
	return err
}

func (s *OrderService) change(from, to entity.OrderStatus, by, note string) *entity.StatusChange {
	return &entity.StatusChange{From: from.String(), To: to.String(), At: s.now().UTC(), By: by, Note: note}
}

// takeStock decrements stock for o and records per line what was taken.
// A shortfall is logged, never fatal.
func (s *OrderService) takeStock(ctx context.Context, o *entity.Order) {
	changes := make([]repo.StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		changes = append(changes, repo.StockChange{ProductID: it.ProductID, Delta: -it.Quantity})
	}
	short, err := s.products.AdjustStock(ctx, changes)
	s.invalidateProducts(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("stock decrement failed")
		return
	}

	skipped := make(map[primitive.ObjectID]bool, len(short))
	for _, id := range short {
		skipped[id] = true
	}
	taken := make([]int, len(o.Items))
	for i, it := range o.Items {
		if !skipped[it.ProductID] {
			taken[i] = it.Quantity
		}
		o.Items[i].StockTaken = taken[i]
	}
	if err := s.orders.SetStockTaken(ctx, o.ID, taken); err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("record stock taken failed")
	}
	if len(short) > 0 {
		ids := make([]string, 0, len(short))
		for _, id := range short {
			ids = append(ids, id.Hex())
		}
		s.logger.WithFields(logrus.Fields{"order_id": o.ID.Hex(), "products": ids}).Warn("order oversold")
	}
}

// restoreStock returns only the units takeStock recorded for o.
func (s *OrderService) restoreStock(ctx context.Context, o *entity.Order) {
	changes := make([]repo.StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		if it.StockTaken > 0 {
			changes = append(changes, repo.StockChange{ProductID: it.ProductID, Delta: it.StockTaken})
		}
	}
	if len(changes) == 0 {
		return
	}
	if _, err := s.products.AdjustStock(ctx, changes); err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("stock restore failed")
		return
	}
	s.invalidateProducts(ctx)
	for i := range o.Items {
		o.Items[i].StockTaken = 0
	}
	if err := s.orders.SetStockTaken(ctx, o.ID, make([]int, len(o.Items))); err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID.Hex()).Error("clear stock taken failed")
	}
}

// invalidateProducts drops cached catalog reads after a stock change.
func (s *OrderService) invalidateProducts(ctx context.Context) {
	if s.productCache == nil {
		return
	}
	if err := s.productCache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("product cache invalidate failed")
	}
}

func (s *OrderService) clearCart(ctx context.Context, userID string) {
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart clear failed")
	}
}

// emit appends an order event to the outbox; failures are logged.
func (s *OrderService) emit(ctx context.Context, eventType string, o *entity.Order, previous string) {
	if s.outbox == nil {
		return
	}
	ev := OrderEvent{
		OrderID:       o.ID.Hex(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status.String(),
		PaymentStatus: o.PaymentStatus.String(),
		PreviousState: previous,
		Total:         o.Total,
		Currency:      o.Currency,
		At:            s.now().UTC(),
	}
	if err := s.outbox.Append(ctx, ev.OrderID, eventType, ev); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"order_id": ev.OrderID, "event": eventType}).Error("outbox append failed")
	}
}

func (s *OrderService) customer(ctx context.Context, userID string) *entity.User {
	if s.users == nil || !s.notify.enabled() {
		return nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("order email skipped, user lookup failed")
		return nil
	}
	return u
}

func (s *OrderService) notifyConfirmation(ctx context.Context, o *entity.Order) {
	if u := s.customer(ctx, o.UserID); u != nil {
		s.notify.OrderConfirmation(ctx, u, o)
	}
}

func (s *OrderService) notifyStatus(ctx context.Context, o *entity.Order, note string) {
	if u := s.customer(ctx, o.UserID); u != nil {
		s.notify.OrderStatus(ctx, u, o, note)
	}
}
