package application

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/mailer"
)

// ---- identity ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*entity.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.Email == u.Email {
			return repo.ErrDuplicate
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (r *fakeUserRepo) SetVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *fakeUserRepo) IsVerified(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	return u.IsVerified, nil
}

func (r *fakeUserRepo) SetRole(_ context.Context, id, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Roles = []string{role}
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, _ entity.UserFilter) (entity.Page[entity.User], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.User{}
	for _, u := range r.users {
		out = append(out, *u)
	}
	return entity.Page[entity.User]{Data: out, TotalCount: int64(len(out))}, nil
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []entity.AuditLog
}

func (r *fakeAuditRepo) Insert(_ context.Context, l entity.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// ---- catalog ----

type fakeCategoryRepo struct {
	items map[primitive.ObjectID]*entity.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{items: map[primitive.ObjectID]*entity.Category{}}
}

func (r *fakeCategoryRepo) Create(_ context.Context, c *entity.Category) error {
	for _, x := range r.items {
		if x.Slug == c.Slug {
			return repo.ErrDuplicate
		}
	}
	c.ID = primitive.NewObjectID()
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, c *entity.Category) error {
	for id, x := range r.items {
		if x.Slug == c.Slug && id != c.ID {
			return repo.ErrDuplicate
		}
	}
	if _, ok := r.items[c.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.Category, error) {
	c, ok := r.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCategoryRepo) GetBySlug(_ context.Context, slug string) (*entity.Category, error) {
	for _, c := range r.items {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeCategoryRepo) List(_ context.Context, _ entity.ListQuery, includeInactive bool) (entity.Page[entity.Category], error) {
	out := []entity.Category{}
	for _, c := range r.items {
		if c.IsActive || includeInactive {
			out = append(out, *c)
		}
	}
	return entity.Page[entity.Category]{Data: out, TotalCount: int64(len(out))}, nil
}

type fakeBrandRepo struct {
	items map[primitive.ObjectID]*entity.Brand
}

func newFakeBrandRepo() *fakeBrandRepo {
	return &fakeBrandRepo{items: map[primitive.ObjectID]*entity.Brand{}}
}

func (r *fakeBrandRepo) Create(_ context.Context, b *entity.Brand) error {
	for _, x := range r.items {
		if x.Slug == b.Slug {
			return repo.ErrDuplicate
		}
	}
	b.ID = primitive.NewObjectID()
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBrandRepo) Update(_ context.Context, b *entity.Brand) error {
	if _, ok := r.items[b.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBrandRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeBrandRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.Brand, error) {
	b, ok := r.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBrandRepo) GetBySlug(_ context.Context, slug string) (*entity.Brand, error) {
	for _, b := range r.items {
		if b.Slug == slug {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeBrandRepo) List(_ context.Context, _ entity.ListQuery, includeInactive bool) (entity.Page[entity.Brand], error) {
	out := []entity.Brand{}
	for _, b := range r.items {
		if b.IsActive || includeInactive {
			out = append(out, *b)
		}
	}
	return entity.Page[entity.Brand]{Data: out, TotalCount: int64(len(out))}, nil
}

type fakeBannerRepo struct {
	items map[primitive.ObjectID]*entity.Banner
	now   time.Time
}

func newFakeBannerRepo() *fakeBannerRepo {
	return &fakeBannerRepo{items: map[primitive.ObjectID]*entity.Banner{}, now: time.Now()}
}

func (r *fakeBannerRepo) Create(_ context.Context, b *entity.Banner) error {
	b.ID = primitive.NewObjectID()
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBannerRepo) Update(_ context.Context, b *entity.Banner) error {
	if _, ok := r.items[b.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *b
	r.items[b.ID] = &cp
	return nil
}

func (r *fakeBannerRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeBannerRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.Banner, error) {
	b, ok := r.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBannerRepo) List(_ context.Context, _ entity.ListQuery) (entity.Page[entity.Banner], error) {
	out := []entity.Banner{}
	for _, b := range r.items {
		out = append(out, *b)
	}
	return entity.Page[entity.Banner]{Data: out, TotalCount: int64(len(out))}, nil
}

func (r *fakeBannerRepo) Live(_ context.Context) ([]entity.Banner, error) {
	out := []entity.Banner{}
	for _, b := range r.items {
		if b.LiveAt(r.now) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type fakeProductRepo struct {
	mu        sync.Mutex
	items     map[primitive.ObjectID]*entity.Product
	order     []primitive.ObjectID
	listCalls int
	listErr   error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{items: map[primitive.ObjectID]*entity.Product{}}
}

// add stores p directly, bypassing validation.
func (r *fakeProductRepo) add(p entity.Product) *entity.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	r.items[p.ID] = &p
	r.order = append(r.order, p.ID)
	return &p
}

func (r *fakeProductRepo) stock(id primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Stock
}

func (r *fakeProductRepo) setStock(id primitive.ObjectID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id].Stock = n
}

func (r *fakeProductRepo) Create(_ context.Context, p *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.items {
		if x.Slug == p.Slug {
			return repo.ErrDuplicate
		}
	}
	p.ID = primitive.NewObjectID()
	cp := *p
	r.items[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

func (r *fakeProductRepo) Update(_ context.Context, p *entity.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, x := range r.items {
		if x.Slug == p.Slug && id != p.ID {
			return repo.ErrDuplicate
		}
	}
	if _, ok := r.items[p.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProductRepo) GetBySlug(_ context.Context, slug string) (*entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeProductRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]entity.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Product{}
	for _, id := range ids {
		if p, ok := r.items[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// List honours the filters the services rely on, in insertion order.
func (r *fakeProductRepo) List(_ context.Context, f entity.ProductFilter) (entity.Page[entity.Product], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.listErr != nil {
		return entity.Page[entity.Product]{}, r.listErr
	}
	ids := map[primitive.ObjectID]bool{}
	for _, id := range f.IDs {
		ids[id] = true
	}
	out := []entity.Product{}
	for _, id := range r.order {
		p, ok := r.items[id]
		switch {
		case !ok:
			continue
		case !f.IncludeInactive && !p.IsActive:
			continue
		case len(ids) > 0 && !ids[p.ID]:
			continue
		case f.InStock && p.Stock <= 0:
			continue
		case f.MaxPrice > 0 && p.EffectivePrice() > f.MaxPrice:
			continue
		case f.Gender != "" && p.Gender != f.Gender && !(f.IncludeUnisex && p.Gender == entity.GenderUnisex):
			continue
		case f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)):
			continue
		}
		out = append(out, *p)
	}
	total := int64(len(out))
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return entity.Page[entity.Product]{Data: out, TotalCount: total}, nil
}

func (r *fakeProductRepo) AdjustStock(_ context.Context, changes []repo.StockChange) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var short []primitive.ObjectID
	for _, c := range changes {
		p, ok := r.items[c.ProductID]
		if !ok || p.Stock+c.Delta < 0 {
			short = append(short, c.ProductID)
			continue
		}
		p.Stock += c.Delta
	}
	return short, nil
}

func (r *fakeProductRepo) CountByRef(_ context.Context, field string, id primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.items {
		if (field == "brand_id" && p.BrandID == id) || (field == "category_id" && p.CategoryID == id) {
			n++
		}
	}
	return n, nil
}

// ---- commerce ----

type fakeCartRepo struct {
	mu    sync.Mutex
	carts map[string]*entity.Cart
	gets  int
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{carts: map[string]*entity.Cart{}}
}

func (r *fakeCartRepo) GetCart(_ context.Context, userID string) (*entity.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	c, ok := r.carts[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	cp.Items = append([]entity.CartItem(nil), c.Items...)
	return &cp, nil
}

func (r *fakeCartRepo) SetItem(_ context.Context, userID string, item entity.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		c = &entity.Cart{UserID: userID, CreatedAt: time.Now()}
		r.carts[userID] = c
	}
	c.UpdatedAt = time.Now()
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity = item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (r *fakeCartRepo) RemoveItem(_ context.Context, userID string, productID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *fakeCartRepo) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]*entity.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[primitive.ObjectID]*entity.Order{}}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *entity.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = primitive.NewObjectID()
	o.CreatedAt, o.UpdatedAt = time.Now(), time.Now()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) List(_ context.Context, f entity.OrderFilter) (entity.Page[entity.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Order{}
	for _, o := range r.orders {
		if (f.UserID == "" || o.UserID == f.UserID) && (f.Status == "" || o.Status == f.Status) {
			out = append(out, *o)
		}
	}
	return entity.Page[entity.Order]{Data: out, TotalCount: int64(len(out))}, nil
}

func (r *fakeOrderRepo) Transition(_ context.Context, id primitive.ObjectID, t entity.OrderTransition) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if len(t.FromStatuses) > 0 && !containsStatus(t.FromStatuses, o.Status) {
		return nil, repo.ErrConflict
	}
	if len(t.FromPaymentStatuses) > 0 && !containsPayment(t.FromPaymentStatuses, o.PaymentStatus) {
		return nil, repo.ErrConflict
	}
	if t.To != "" {
		o.Status = t.To
	}
	if t.ToPayment != "" {
		o.PaymentStatus = t.ToPayment
	}
	if t.RazorpayOrderID != "" {
		o.RazorpayOrderID = t.RazorpayOrderID
	}
	if t.CancelReason != "" {
		o.CancelReason = t.CancelReason
	}
	if t.Change != nil {
		o.StatusHistory = append(o.StatusHistory, *t.Change)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) SetStockTaken(_ context.Context, id primitive.ObjectID, taken []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	items := append([]entity.OrderItem(nil), o.Items...)
	for i := range items {
		if i < len(taken) {
			items[i].StockTaken = taken[i]
		}
	}
	o.Items = items
	return nil
}

func (r *fakeOrderRepo) Stats(_ context.Context, _ time.Time) (entity.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := entity.OrderStats{ByStatus: map[string]int64{}}
	for _, o := range r.orders {
		st.ByStatus[o.Status.String()]++
		st.TotalOrders++
		if o.PaymentStatus == entity.PaymentPaid {
			st.PaidRevenue += o.Total
		}
	}
	return st, nil
}

func containsStatus(list []entity.OrderStatus, s entity.OrderStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func containsPayment(list []entity.PaymentStatus, s entity.PaymentStatus) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*entity.Payment // by razorpay order id
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[string]*entity.Payment{}}
}

func (r *fakePaymentRepo) get(rzpOrderID string) *entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[rzpOrderID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *fakePaymentRepo) Create(_ context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.RazorpayOrderID]; ok {
		return repo.ErrDuplicate
	}
	p.ID = primitive.NewObjectID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = entity.PaymentRecordCreated
	}
	cp := *p
	r.payments[p.RazorpayOrderID] = &cp
	return nil
}

func (r *fakePaymentRepo) GetByRazorpayOrderID(_ context.Context, id string) (*entity.Payment, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (r *fakePaymentRepo) LatestForOrder(_ context.Context, orderID primitive.ObjectID) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entity.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID && (latest == nil || p.Attempt > latest.Attempt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repo.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakePaymentRepo) CountForOrder(_ context.Context, orderID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.payments {
		if p.OrderID == orderID {
			n++
		}
	}
	return n, nil
}

func (r *fakePaymentRepo) MarkPaid(_ context.Context, id string, c entity.Capture) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if p.Status != entity.PaymentRecordCreated && p.Status != entity.PaymentRecordFailed {
		return nil, repo.ErrConflict
	}
	now := time.Now()
	p.Status = entity.PaymentRecordPaid
	p.RazorpayPaymentID = c.RazorpayPaymentID
	p.RazorpaySignature = c.Signature
	p.Method = c.Method
	p.Source = c.Source
	p.PaidAt = &now
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) MarkFailed(_ context.Context, id, paymentID, reason, source string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if p.Status != entity.PaymentRecordCreated {
		return nil, repo.ErrConflict
	}
	p.Status = entity.PaymentRecordFailed
	p.RazorpayPaymentID = paymentID
	p.FailureReason = reason
	p.Source = source
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) MarkRefunded(_ context.Context, orderID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == entity.PaymentRecordPaid {
			p.Status = entity.PaymentRecordRefunded
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *fakePaymentRepo) List(_ context.Context, f entity.PaymentFilter) (entity.Page[entity.Payment], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Payment{}
	for _, p := range r.payments {
		if f.Status == "" || p.Status == f.Status {
			out = append(out, *p)
		}
	}
	return entity.Page[entity.Payment]{Data: out, TotalCount: int64(len(out))}, nil
}

func (r *fakePaymentRepo) Stale(_ context.Context, olderThan time.Time, limit int) ([]entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Payment{}
	for _, p := range r.payments {
		if p.Status == entity.PaymentRecordCreated && p.CreatedAt.Before(olderThan) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []entity.OutboxEvent
}

func (o *fakeOutbox) Append(_ context.Context, aggregateID, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, entity.OutboxEvent{
		ID: primitive.NewObjectID(), AggregateID: aggregateID, EventType: eventType, Payload: b, CreatedAt: time.Now(),
	})
	return nil
}

func (o *fakeOutbox) Unprocessed(context.Context, int) ([]entity.OutboxEvent, error) {
	return nil, nil
}

func (o *fakeOutbox) MarkProcessed(context.Context, primitive.ObjectID) error { return nil }

func (o *fakeOutbox) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.events))
	for _, e := range o.events {
		out = append(out, e.EventType)
	}
	return out
}

// ---- ports ----

type fakeGateway struct {
	mu         sync.Mutex
	createErr  error
	paymentErr error
	created    []string
	attempts   map[string][]entity.GatewayPayment
	validSig   bool
	validHook  bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{attempts: map[string][]entity.GatewayPayment{}, validSig: true, validHook: true}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, _ map[string]string) (*entity.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := "order_" + primitive.NewObjectID().Hex()
	g.created = append(g.created, id)
	return &entity.GatewayOrder{ID: id, AmountMinor: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) OrderPayments(_ context.Context, id string) ([]entity.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paymentErr != nil {
		return nil, g.paymentErr
	}
	return g.attempts[id], nil
}

func (g *fakeGateway) VerifyPaymentSignature(_, _, _ string) bool { return g.validSig }

func (g *fakeGateway) VerifyWebhookSignature(_ []byte, _ string) bool { return g.validHook }

type fakeTextGen struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeTextGen) GenerateJSON(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

type fakeResultCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated int
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{data: map[string][]byte{}}
}

func (c *fakeResultCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *fakeResultCache) Set(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *fakeResultCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string][]byte{}
	c.invalidated++
	return nil
}

type fakeCartCache struct {
	mu      sync.Mutex
	carts   map[string]entity.Cart
	deletes int
}

func newFakeCartCache() *fakeCartCache {
	return &fakeCartCache{carts: map[string]entity.Cart{}}
}

func (c *fakeCartCache) Get(_ context.Context, userID string) (*entity.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &cart, nil
}

func (c *fakeCartCache) Set(_ context.Context, userID string, cart *entity.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = *cart
	return nil
}

func (c *fakeCartCache) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, userID)
	c.deletes++
	return nil
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{seen: map[string]bool{}} }

func (d *fakeDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *fakeDeduper) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type fakeSearch struct {
	ids     []string
	err     error
	indexed map[string]string // id -> name
	deleted []string
}

func newFakeSearch() *fakeSearch { return &fakeSearch{indexed: map[string]string{}} }

func (s *fakeSearch) Index(_ context.Context, p *entity.Product) error {
	s.indexed[p.ID.Hex()] = p.Name
	return nil
}

func (s *fakeSearch) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeSearch) Search(context.Context, string, int) ([]string, error) {
	return s.ids, s.err
}

type fakeEmailQueue struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (q *fakeEmailQueue) Enqueue(_ context.Context, job mailer.EmailJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeEmailQueue) templates() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Template)
	}
	return out
}

func (q *fakeEmailQueue) last(template string) (mailer.EmailJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := len(q.jobs) - 1; i >= 0; i-- {
		if q.jobs[i].Template == template {
			return q.jobs[i], true
		}
	}
	return mailer.EmailJob{}, false
}

type fakeImageStore struct {
	uploaded map[string][]byte
	err      error
}

func newFakeImageStore() *fakeImageStore { return &fakeImageStore{uploaded: map[string][]byte{}} }

func (s *fakeImageStore) Name() string { return "fake" }

func (s *fakeImageStore) Upload(_ context.Context, name, _ string, data []byte) (*entity.UploadedImage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.uploaded[name] = data
	return &entity.UploadedImage{URL: "https://cdn.example.com/" + name, PublicID: name}, nil
}

func (s *fakeImageStore) Delete(_ context.Context, publicID string) error {
	if _, ok := s.uploaded[publicID]; !ok {
		return errors.New("not found")
	}
	delete(s.uploaded, publicID)
	return nil
}
