package application

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
	"github.com/oksasatya/perfume-storefront/pkg/mailer"
	tpl "github.com/oksasatya/perfume-storefront/pkg/mailer/templates"
)

// Notifier turns domain events into email jobs. Queue failures are logged and never
// fail the caller.
type Notifier struct {
	queue  EmailQueue
	cfg    *config.Config
	logger *logrus.Logger
}

// NewNotifier returns a notifier; a nil queue or disabled sending makes every call a no-op.
func NewNotifier(queue EmailQueue, cfg *config.Config, logger *logrus.Logger) *Notifier {
	return &Notifier{queue: queue, cfg: cfg, logger: logger}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.queue != nil && n.cfg != nil && n.cfg.MailSendEnabled
}

func (n *Notifier) send(ctx context.Context, to, template string, data map[string]any) {
	if !n.enabled() || to == "" {
		return
	}
	if err := n.queue.Enqueue(ctx, mailer.EmailJob{To: to, Template: template, Data: data}); err != nil {
		n.logger.WithError(err).WithField("template", template).Warn("enqueue email failed")
	}
}

func metaOpts(meta RequestMeta) []tpl.Option {
	return []tpl.Option{tpl.WithTime(time.Now()), tpl.WithIP(meta.IP), tpl.WithUserAgent(meta.UserAgent)}
}

func (n *Notifier) Welcome(ctx context.Context, u *entity.User) {
	if !n.enabled() {
		return
	}
	n.send(ctx, u.Email, tpl.Welcome, tpl.NewWelcomeData(n.cfg, u.Name, u.Email))
}

func (n *Notifier) LoginNotification(ctx context.Context, u *entity.User, meta RequestMeta) {
	if !n.enabled() {
		return
	}
	n.send(ctx, u.Email, tpl.LoginNotification, tpl.NewLoginNotificationData(n.cfg, u.Name, u.Email, u.Email, metaOpts(meta)...))
}

func (n *Notifier) VerifyEmail(ctx context.Context, u *entity.User, link string, ttl time.Duration, meta RequestMeta) {
	if !n.enabled() {
		return
	}
	opts := append(metaOpts(meta), tpl.WithExpiresIn(ttl))
	n.send(ctx, u.Email, tpl.VerifyEmail, tpl.NewVerifyEmailData(n.cfg, u.Name, u.Email, link, opts...))
}

func (n *Notifier) PasswordReset(ctx context.Context, u *entity.User, link string, ttl time.Duration, meta RequestMeta) {
	if !n.enabled() {
		return
	}
	opts := append(metaOpts(meta), tpl.WithResetURL(link), tpl.WithExpiresIn(ttl))
	n.send(ctx, u.Email, tpl.ForgotPassword, tpl.NewForgotPasswordData(n.cfg, u.Name, u.Email, u.Email, opts...))
}

func (n *Notifier) ProfileUpdated(ctx context.Context, u *entity.User, changes map[string]string, meta RequestMeta) {
	if !n.enabled() || len(changes) == 0 {
		return
	}
	n.send(ctx, u.Email, tpl.ProfileUpdated, tpl.NewProfileUpdatedData(n.cfg, u.Name, u.Email, changes, metaOpts(meta)...))
}

// OrderConfirmation mails the order summary to the customer.
func (n *Notifier) OrderConfirmation(ctx context.Context, u *entity.User, o *entity.Order) {
	if !n.enabled() || u == nil {
		return
	}
	data := tpl.NewOrderData(n.cfg, tpl.OrderConfirmation, u.Name, u.Email, orderEmail(o))
	n.send(ctx, u.Email, tpl.OrderConfirmation, data)
}

// OrderStatus mails a status change.
func (n *Notifier) OrderStatus(ctx context.Context, u *entity.User, o *entity.Order, note string) {
	if !n.enabled() || u == nil {
		return
	}
	oe := orderEmail(o)
	oe.Note = note
	data := tpl.NewOrderData(n.cfg, tpl.OrderStatus, u.Name, u.Email, oe)
	n.send(ctx, u.Email, tpl.OrderStatus, data)
}

var statusLabels = map[entity.OrderStatus]string{
	entity.OrderPending:    "Awaiting payment",
	entity.OrderConfirmed:  "Confirmed",
	entity.OrderProcessing: "Being prepared",
	entity.OrderShipped:    "Shipped",
	entity.OrderDelivered:  "Delivered",
	entity.OrderCancelled:  "Cancelled",
}

func orderEmail(o *entity.Order) tpl.OrderEmail {
	items := make([]tpl.OrderEmailItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, tpl.OrderEmailItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: helpers.FormatMoney(o.Currency, it.UnitPrice),
			LineTotal: helpers.FormatMoney(o.Currency, it.LineTotal),
		})
	}
	a := o.ShippingAddress
	lines := []string{a.FullName, a.Line1}
	if a.Line2 != "" {
		lines = append(lines, a.Line2)
	}
	lines = append(lines, strings.TrimSpace(a.City+", "+a.State+" "+a.PostalCode), a.Country, a.Phone)

	return tpl.OrderEmail{
		Number:        o.OrderNumber,
		Status:        o.Status.String(),
		StatusLabel:   statusLabels[o.Status],
		PaymentMethod: o.PaymentMethod,
		Items:         items,
		Subtotal:      helpers.FormatMoney(o.Currency, o.Subtotal),
		ShippingFee:   helpers.FormatMoney(o.Currency, o.ShippingFee),
		Total:         helpers.FormatMoney(o.Currency, o.Total),
		AddressLines:  lines,
	}
}
