package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

var (
	ErrProductUnavailable = apperror.Conflict("product_unavailable", "product is not available")
	ErrInsufficientStock  = apperror.Conflict("insufficient_stock", "not enough stock")
	ErrCartItemNotFound   = apperror.NotFound("cart item")
)

type CartService struct {
	carts    repo.CartRepository
	products repo.ProductRepository
	cache    CartCache
	logger   *logrus.Logger
}

// NewCartService builds the cart service. cartCache may be nil.
func NewCartService(carts repo.CartRepository, products repo.ProductRepository, cartCache CartCache, logger *logrus.Logger) *CartService {
	return &CartService{carts: carts, products: products, cache: cartCache, logger: logger}
}

// Cart returns the stored cart, reading through the cache. A user without a cart gets an empty one.
func (s *CartService) Cart(ctx context.Context, userID string) (*entity.Cart, error) {
	if s.cache != nil {
		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("cart cache read failed")
		}
	}

	c, err := s.carts.GetCart(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return &entity.Cart{UserID: userID, Items: []entity.CartItem{}}, nil
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, c); err != nil {
			s.logger.WithError(err).Warn("cart cache write failed")
		}
	}
	return c, nil
}

// View joins the cart with live product data.
func (s *CartService) View(ctx context.Context, userID string) (*entity.CartView, error) {
	c, err := s.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &entity.CartView{Items: []entity.CartLine{}, UpdatedAt: c.UpdatedAt}
	if len(c.Items) == 0 {
		return view, nil
	}

	products, err := s.products.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byID := make(map[primitive.ObjectID]entity.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			// product deleted since it was added
			view.Items = append(view.Items, entity.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
			continue
		}
		line := helpers.LineTotal(p.EffectivePrice(), it.Quantity)
		cl := entity.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Slug:      p.Slug,
			Image:     p.PrimaryImage(),
			UnitPrice: p.EffectivePrice(),
			Quantity:  it.Quantity,
			LineTotal: helpers.Float(line),
			Stock:     p.Stock,
			Available: p.Purchasable(it.Quantity),
		}
		if cl.Available {
			subtotal = subtotal.Add(line)
			view.ItemCount += it.Quantity
		}
		view.Items = append(view.Items, cl)
	}
	view.Subtotal = helpers.Float(subtotal)
	return view, nil
}

func validQuantity(qty int) error {
	if qty < 1 || qty > entity.MaxCartItemQuantity {
		return apperror.Validation(map[string]string{
			"quantity": fmt.Sprintf("must be between 1 and %d", entity.MaxCartItemQuantity),
		})
	}
	return nil
}

// checkProduct loads the product and verifies qty can be bought.
func (s *CartService) checkProduct(ctx context.Context, productID string, qty int) (*entity.Product, error) {
	oid, err := parseID(productID, "product")
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if !p.IsActive {
		return nil, ErrProductUnavailable
	}
	if p.Stock < qty {
		return nil, ErrInsufficientStock.WithDetails(map[string]int{"available": p.Stock})
	}
	return p, nil
}

// AddItem adds the product, or sets its quantity when already present.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) (*entity.CartView, error) {
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	p, err := s.checkProduct(ctx, productID, qty)
	if err != nil {
		return nil, err
	}
	if err := s.carts.SetItem(ctx, userID, entity.CartItem{ProductID: p.ID, Quantity: qty}); err != nil {
		return nil, apperror.Internal(err)
	}
	s.invalidate(ctx, userID)
	return s.View(ctx, userID)
}

// UpdateItem changes the quantity of a product already in the cart.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, qty int) (*entity.CartView, error) {
	if err := validQuantity(qty); err != nil {
		return nil, err
	}
	c, err := s.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	oid, err := parseID(productID, "cart item")
	if err != nil {
		return nil, err
	}
	if !cartHas(c, oid) {
		return nil, ErrCartItemNotFound
	}
	if _, err := s.checkProduct(ctx, productID, qty); err != nil {
		return nil, err
	}
	if err := s.carts.SetItem(ctx, userID, entity.CartItem{ProductID: oid, Quantity: qty}); err != nil {
		return nil, apperror.Internal(err)
	}
	s.invalidate(ctx, userID)
	return s.View(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*entity.CartView, error) {
	oid, err := parseID(productID, "cart item")
	if err != nil {
		return nil, err
	}
	err = s.carts.RemoveItem(ctx, userID, oid)
	s.invalidate(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "cart item")
	}
	return s.View(ctx, userID)
}

// Clear empties the cart. Clearing a missing cart succeeds.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		return apperror.Internal(err)
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart cache invalidation failed")
	}
}

func cartHas(c *entity.Cart, id primitive.ObjectID) bool {
	for _, it := range c.Items {
		if it.ProductID == id {
			return true
		}
	}
	return false
}
