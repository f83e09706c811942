package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, uri, "storefront_test")
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))
	return db
}

func seedCatalog(t *testing.T, db *mongo.Database) (*entity.Brand, *entity.Category, []*entity.Product) {
	t.Helper()
	ctx := context.Background()

	brand := &entity.Brand{Name: "Maison Noir", Slug: "maison-noir", IsActive: true}
	require.NoError(t, NewBrandRepository(db).Create(ctx, brand))
	cat := &entity.Category{Name: "Eau de Parfum", Slug: "eau-de-parfum", IsActive: true}
	require.NoError(t, NewCategoryRepository(db).Create(ctx, cat))

	products := NewProductRepository(db)
	items := []*entity.Product{
		{Name: "Oud Nights", Slug: "oud-nights", Price: 4999, DiscountPrice: 3999, Stock: 5, Gender: entity.GenderMen,
			Notes: entity.FragranceNotes{Base: []string{"oud", "amber"}}, IsActive: true, IsFeatured: true},
		{Name: "Rose Veil", Slug: "rose-veil", Price: 2999, Stock: 0, Gender: entity.GenderWomen,
			Notes: entity.FragranceNotes{Top: []string{"rose"}}, IsActive: true},
		{Name: "Citrus Air", Slug: "citrus-air", Price: 1499, Stock: 12, Gender: entity.GenderUnisex,
			Notes: entity.FragranceNotes{Top: []string{"bergamot"}}, IsActive: false},
	}
	for _, p := range items {
		p.BrandID, p.CategoryID = brand.ID, cat.ID
		require.NoError(t, products.Create(ctx, p))
	}
	return brand, cat, items
}

func TestProductRepository_ListFiltersAndJoins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, cat, _ := seedCatalog(t, db)
	repo := NewProductRepository(db)

	page, err := repo.List(ctx, entity.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount, "inactive products are hidden")

	page, err = repo.List(ctx, entity.ProductFilter{Category: cat.Slug, IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)

	page, err = repo.List(ctx, entity.ProductFilter{MaxPrice: 4000})
	require.NoError(t, err)
	require.Len(t, page.Data, 2, "discounted price is used for the range")

	page, err = repo.List(ctx, entity.ProductFilter{Notes: []string{"oud"}, InStock: true})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "oud-nights", page.Data[0].Slug)
	require.NotNil(t, page.Data[0].Brand)
	assert.Equal(t, "maison-noir", page.Data[0].Brand.Slug)

	page, err = repo.List(ctx, entity.ProductFilter{ListQuery: entity.ListQuery{Sort: "price", Order: "asc"}})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "rose-veil", page.Data[0].Slug)

	page, err = repo.List(ctx, entity.ProductFilter{Brand: "unknown-brand"})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestEnsureIndexes_RerunEnforcesUniqueness(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	// every process start runs it again
	require.NoError(t, EnsureIndexes(ctx, db))

	orders := NewOrderRepository(db)
	require.NoError(t, orders.Create(ctx, &entity.Order{OrderNumber: "ORD-20240101-UNIQ01", UserID: "u1"}))
	err := orders.Create(ctx, &entity.Order{OrderNumber: "ORD-20240101-UNIQ01", UserID: "u2"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	payments := NewPaymentRepository(db)
	require.NoError(t, payments.Create(ctx, &entity.Payment{RazorpayOrderID: "order_same", Status: entity.PaymentRecordCreated}))
	err = payments.Create(ctx, &entity.Payment{RazorpayOrderID: "order_same", Status: entity.PaymentRecordCreated})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestProductRepository_DuplicateSlug(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	err := NewProductRepository(db).Create(context.Background(), &entity.Product{Name: "Again", Slug: "oud-nights"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestProductRepository_AdjustStockNeverGoesNegative(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, _, items := seedCatalog(t, db)
	repo := NewProductRepository(db)

	failed, err := repo.AdjustStock(ctx, []repository.StockChange{
		{ProductID: items[0].ID, Delta: -2},
		{ProductID: items[1].ID, Delta: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{items[1].ID}, failed)

	p, err := repo.GetByID(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestCategoryRepository_ListIncludesProductCount(t *testing.T) {
	db := setupTestDB(t)
	seedCatalog(t, db)

	page, err := NewCategoryRepository(db).List(context.Background(), entity.ListQuery{}, false)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Data[0].ProductCount)
}

func TestCartRepository_SetItemUpsertsAndReplaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCartRepository(db)
	pid := primitive.NewObjectID()

	_, err := repo.GetCart(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SetItem(ctx, "u1", entity.CartItem{ProductID: pid, Quantity: 2}))
	require.NoError(t, repo.SetItem(ctx, "u1", entity.CartItem{ProductID: pid, Quantity: 5}))

	cart, err := repo.GetCart(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	require.NoError(t, repo.RemoveItem(ctx, "u1", pid))
	assert.ErrorIs(t, repo.RemoveItem(ctx, "u1", pid), repository.ErrNotFound)
	require.NoError(t, repo.DeleteCart(ctx, "u1"))
	require.NoError(t, repo.DeleteCart(ctx, "u1"))
}

func TestOrderRepository_TransitionIsGuarded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)

	o := &entity.Order{OrderNumber: "ORD-20240101-ABC123", UserID: "u1", Total: 1098,
		Status: entity.OrderPending, PaymentStatus: entity.PaymentPending}
	require.NoError(t, repo.Create(ctx, o))

	confirm := entity.OrderTransition{
		FromStatuses:        []entity.OrderStatus{entity.OrderPending},
		FromPaymentStatuses: []entity.PaymentStatus{entity.PaymentPending, entity.PaymentFailed},
		To:                  entity.OrderConfirmed,
		ToPayment:           entity.PaymentPaid,
		Change:              &entity.StatusChange{From: "pending", To: "confirmed", At: time.Now().UTC()},
	}
	updated, err := repo.Transition(ctx, o.ID, confirm)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderConfirmed, updated.Status)
	assert.Len(t, updated.StatusHistory, 1)

	_, err = repo.Transition(ctx, o.ID, confirm)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.Transition(ctx, primitive.NewObjectID(), confirm)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	stats, err := repo.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.ByStatus["confirmed"])
	assert.Equal(t, 1098.0, stats.PaidRevenue)
	assert.Equal(t, 1098.0, stats.TodayRevenue)
}

func TestOrderRepository_SetStockTaken(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)

	o := &entity.Order{OrderNumber: "ORD-20240101-STK001", UserID: "u1", Status: entity.OrderConfirmed,
		Items: []entity.OrderItem{
			{ProductID: primitive.NewObjectID(), Name: "Oud Nights", Quantity: 2},
			{ProductID: primitive.NewObjectID(), Name: "Rose Veil", Quantity: 1},
		}}
	require.NoError(t, repo.Create(ctx, o))

	require.NoError(t, repo.SetStockTaken(ctx, o.ID, []int{2, 0}))
	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].StockTaken)
	assert.Zero(t, got.Items[1].StockTaken)
	assert.Equal(t, "Oud Nights", got.Items[0].Name)

	// the cancel transition hands the recorded amounts back
	cancelled, err := repo.Transition(ctx, o.ID, entity.OrderTransition{To: entity.OrderCancelled})
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled.Items[0].StockTaken)

	assert.ErrorIs(t, repo.SetStockTaken(ctx, primitive.NewObjectID(), []int{1}), repository.ErrNotFound)
}

func TestPaymentRepository_MarkPaidOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPaymentRepository(db)

	p := &entity.Payment{OrderID: primitive.NewObjectID(), RazorpayOrderID: "order_X1", Amount: 1098, AmountMinor: 109800}
	require.NoError(t, repo.Create(ctx, p))

	paid, err := repo.MarkPaid(ctx, "order_X1", entity.Capture{RazorpayPaymentID: "pay_1", Source: entity.PaymentSourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentRecordPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = repo.MarkPaid(ctx, "order_X1", entity.Capture{RazorpayPaymentID: "pay_1", Source: entity.PaymentSourceVerify})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.MarkFailed(ctx, "order_X1", "pay_1", "late failure", entity.PaymentSourceWebhook)
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = repo.MarkPaid(ctx, "order_missing", entity.Capture{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOutboxRepository_DrainOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewOutboxRepository(db)

	require.NoError(t, repo.Append(ctx, "o1", entity.EventOrderCreated, map[string]string{"id": "o1"}))
	require.NoError(t, repo.Append(ctx, "o1", entity.EventOrderPaid, map[string]string{"id": "o1"}))

	events, err := repo.Unprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entity.EventOrderCreated, events[0].EventType)
	assert.JSONEq(t, `{"id":"o1"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkProcessed(ctx, events[0].ID))
	events, err = repo.Unprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventOrderPaid, events[0].EventType)
}
