package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

type fakeCatalog struct {
	brands     map[string]*entity.Brand
	categories map[string]*entity.Category
	products   map[string]*entity.Product
	productIn  map[string]application.ProductInput
	banners    []entity.Banner
	creates    int
	updates    int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		brands:     map[string]*entity.Brand{},
		categories: map[string]*entity.Category{},
		products:   map[string]*entity.Product{},
		productIn:  map[string]application.ProductInput{},
	}
}

func (f *fakeCatalog) GetBrand(_ context.Context, slug string, _ bool) (*entity.Brand, error) {
	if b, ok := f.brands[slug]; ok {
		return b, nil
	}
	return nil, apperror.NotFound("brand")
}

func (f *fakeCatalog) CreateBrand(_ context.Context, in application.BrandInput) (*entity.Brand, error) {
	f.creates++
	b := &entity.Brand{ID: primitive.NewObjectID(), Name: in.Name, Slug: in.Slug}
	f.brands[in.Slug] = b
	return b, nil
}

func (f *fakeCatalog) UpdateBrand(_ context.Context, _ string, in application.BrandInput) (*entity.Brand, error) {
	f.updates++
	return f.brands[in.Slug], nil
}

func (f *fakeCatalog) GetCategory(_ context.Context, slug string, _ bool) (*entity.Category, error) {
	if c, ok := f.categories[slug]; ok {
		return c, nil
	}
	return nil, apperror.NotFound("category")
}

func (f *fakeCatalog) CreateCategory(_ context.Context, in application.CategoryInput) (*entity.Category, error) {
	f.creates++
	c := &entity.Category{ID: primitive.NewObjectID(), Name: in.Name, Slug: in.Slug}
	f.categories[in.Slug] = c
	return c, nil
}

func (f *fakeCatalog) UpdateCategory(_ context.Context, _ string, in application.CategoryInput) (*entity.Category, error) {
	f.updates++
	return f.categories[in.Slug], nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, slug string, _ bool) (*entity.Product, error) {
	if p, ok := f.products[slug]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("product")
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in application.ProductInput) (*entity.Product, error) {
	f.creates++
	p := &entity.Product{ID: primitive.NewObjectID(), Name: in.Name, Slug: in.Slug}
	f.products[in.Slug] = p
	f.productIn[in.Slug] = in
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, _ string, in application.ProductInput) (*entity.Product, error) {
	f.updates++
	f.productIn[in.Slug] = in
	return f.products[in.Slug], nil
}

func (f *fakeCatalog) ListBanners(_ context.Context, _ entity.ListQuery) (entity.Page[entity.Banner], error) {
	return entity.Page[entity.Banner]{Data: f.banners, TotalCount: int64(len(f.banners))}, nil
}

func (f *fakeCatalog) CreateBanner(_ context.Context, in application.BannerInput) (*entity.Banner, error) {
	f.creates++
	b := entity.Banner{ID: primitive.NewObjectID(), Title: in.Title}
	f.banners = append(f.banners, b)
	return &b, nil
}

func (f *fakeCatalog) UpdateBanner(_ context.Context, _ string, in application.BannerInput) (*entity.Banner, error) {
	f.updates++
	return &entity.Banner{Title: in.Title}, nil
}

func TestLoadSeed_BundledCatalog(t *testing.T) {
	f, err := loadSeed("../../db/seed/catalog.yaml")
	require.NoError(t, err)

	assert.Len(t, f.Brands, 2)
	assert.Equal(t, "maison-ambre", f.Brands[0].Slug)
	assert.Equal(t, "eau-de-parfum", f.Categories[0].Slug)
	require.Len(t, f.Products, 3)
	assert.Equal(t, "amber-nocturne-100ml", f.Products[0].Slug)
	assert.Equal(t, []string{"amber", "vanilla", "benzoin"}, f.Products[0].Notes.Base)
	assert.Len(t, f.Banners, 1)
}

func TestParseSeed_ProductNeedsRefs(t *testing.T) {
	_, err := parseSeed([]byte("products:\n  - name: Loose\n    price: 10\n"))
	assert.ErrorContains(t, err, "brand and category are required")

	_, err = parseSeed([]byte("brands: [oops"))
	assert.Error(t, err)
}

func TestSeeder_Idempotent(t *testing.T) {
	f, err := loadSeed("../../db/seed/catalog.yaml")
	require.NoError(t, err)
	cat := newFakeCatalog()
	ctx := context.Background()

	res, err := newSeeder(cat).Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, seedResult{Brands: 2, Categories: 2, Products: 3, Banners: 1}, res)
	assert.Equal(t, 8, cat.creates)
	assert.Zero(t, cat.updates)

	in := cat.productIn["mitti-attar-12ml"]
	assert.Equal(t, cat.brands["kannauj-attars"].ID.Hex(), in.BrandID)
	assert.Equal(t, cat.categories["attar"].ID.Hex(), in.CategoryID)
	assert.True(t, in.IsFeatured)

	_, err = newSeeder(cat).Run(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 8, cat.creates)
	assert.Equal(t, 8, cat.updates)
	assert.Len(t, cat.banners, 1)
}

func TestSeeder_UnknownBrand(t *testing.T) {
	f, err := parseSeed([]byte("products:\n  - name: Orphan\n    brand: nobody\n    category: none\n"))
	require.NoError(t, err)

	_, err = newSeeder(newFakeCatalog()).Run(context.Background(), f)
	assert.ErrorContains(t, err, "brand nobody")
}

type fakeUsers struct {
	byEmail  map[string]*entity.User
	role     map[string]string
	verified map[string]bool
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	u.ID = "u-" + u.Email
	f.byEmail[u.Email] = u
	f.role[u.ID] = u.Roles[0]
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	for _, u := range f.byEmail {
		if u.ID == id {
			u.Password = hash
		}
	}
	return nil
}

func (f *fakeUsers) SetVerified(_ context.Context, id string) error {
	f.verified[id] = true
	return nil
}

func (f *fakeUsers) SetRole(_ context.Context, id, role string) error {
	f.role[id] = role
	return nil
}

func TestUpsertAdmin(t *testing.T) {
	users := &fakeUsers{byEmail: map[string]*entity.User{}, role: map[string]string{}, verified: map[string]bool{}}
	ctx := context.Background()

	require.NoError(t, upsertAdmin(ctx, users, " Admin@Shop.test ", "first-password"))
	u := users.byEmail["admin@shop.test"]
	require.NotNil(t, u)
	assert.Equal(t, entity.RoleAdmin, users.role[u.ID])
	assert.True(t, users.verified[u.ID])
	assert.True(t, helpers.CompareHashAndPassword(u.Password, "first-password"))

	users.role[u.ID] = entity.RoleCustomer
	require.NoError(t, upsertAdmin(ctx, users, "admin@shop.test", "second-password"))
	assert.Equal(t, entity.RoleAdmin, users.role[u.ID])
	assert.True(t, helpers.CompareHashAndPassword(u.Password, "second-password"))

	assert.Error(t, upsertAdmin(ctx, users, "admin@shop.test", "short"))
}
