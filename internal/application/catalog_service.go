package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	repo "github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

const maxSearchResults = 50

type CatalogService struct {
	categories repo.CategoryRepository
	brands     repo.BrandRepository
	banners    repo.BannerRepository
	products   repo.ProductRepository
	search     ProductSearch
	cache      ResultCache
	logger     *logrus.Logger
}

type CatalogDeps struct {
	Categories repo.CategoryRepository
	Brands     repo.BrandRepository
	Banners    repo.BannerRepository
	Products   repo.ProductRepository
	Search     ProductSearch // optional
	Cache      ResultCache   // optional
	Logger     *logrus.Logger
}

func NewCatalogService(d CatalogDeps) *CatalogService {
	return &CatalogService{
		categories: d.Categories,
		brands:     d.Brands,
		banners:    d.Banners,
		products:   d.Products,
		search:     d.Search,
		cache:      d.Cache,
		logger:     d.Logger,
	}
}

func slugFor(slug, name string) (string, error) {
	s := strings.TrimSpace(slug)
	if s == "" {
		s = helpers.Slugify(name)
	}
	if s == "" {
		return "", apperror.Validation(map[string]string{"slug": "could not derive a slug from name"})
	}
	return s, nil
}

func activeOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// invalidateProducts drops cached product reads after a catalog write.
func (s *CatalogService) invalidateProducts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("product cache invalidation failed")
	}
}

// ---- categories ----

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	Image       string
	IsActive    *bool
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*entity.Category, error) {
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	c := &entity.Category{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: in.Description,
		Image:       in.Image,
		IsActive:    activeOr(in.IsActive, true),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, storeErr(err, "category")
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*entity.Category, error) {
	oid, err := parseID(id, "category")
	if err != nil {
		return nil, err
	}
	c, err := s.categories.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "category")
	}
	if c.Slug, err = slugFor(in.Slug, in.Name); err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(in.Name)
	c.Description = in.Description
	c.Image = in.Image
	c.IsActive = activeOr(in.IsActive, c.IsActive)
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, storeErr(err, "category")
	}
	s.invalidateProducts(ctx)
	return c, nil
}

// DeleteCategory refuses while products still reference the category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	oid, err := parseID(id, "category")
	if err != nil {
		return err
	}
	if err := s.ensureUnreferenced(ctx, "category_id", oid, "category"); err != nil {
		return err
	}
	return storeErr(s.categories.Delete(ctx, oid), "category")
}

func (s *CatalogService) GetCategory(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Category, error) {
	var (
		c   *entity.Category
		err error
	)
	if oid, perr := primitive.ObjectIDFromHex(idOrSlug); perr == nil {
		c, err = s.categories.GetByID(ctx, oid)
	} else {
		c, err = s.categories.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, storeErr(err, "category")
	}
	if !c.IsActive && !includeInactive {
		return nil, apperror.NotFound("category")
	}
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Category], error) {
	page, err := s.categories.List(ctx, q, includeInactive)
	if err != nil {
		return page, apperror.Internal(err)
	}
	return page, nil
}

// ---- brands ----

type BrandInput struct {
	Name        string
	Slug        string
	Description string
	Logo        string
	Country     string
	IsActive    *bool
}

func (s *CatalogService) CreateBrand(ctx context.Context, in BrandInput) (*entity.Brand, error) {
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	b := &entity.Brand{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: in.Description,
		Logo:        in.Logo,
		Country:     in.Country,
		IsActive:    activeOr(in.IsActive, true),
	}
	if err := s.brands.Create(ctx, b); err != nil {
		return nil, storeErr(err, "brand")
	}
	return b, nil
}

func (s *CatalogService) UpdateBrand(ctx context.Context, id string, in BrandInput) (*entity.Brand, error) {
	oid, err := parseID(id, "brand")
	if err != nil {
		return nil, err
	}
	b, err := s.brands.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "brand")
	}
	if b.Slug, err = slugFor(in.Slug, in.Name); err != nil {
		return nil, err
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Description = in.Description
	b.Logo = in.Logo
	b.Country = in.Country
	b.IsActive = activeOr(in.IsActive, b.IsActive)
	if err := s.brands.Update(ctx, b); err != nil {
		return nil, storeErr(err, "brand")
	}
	s.invalidateProducts(ctx)
	return b, nil
}

func (s *CatalogService) DeleteBrand(ctx context.Context, id string) error {
	oid, err := parseID(id, "brand")
	if err != nil {
		return err
	}
	if err := s.ensureUnreferenced(ctx, "brand_id", oid, "brand"); err != nil {
		return err
	}
	return storeErr(s.brands.Delete(ctx, oid), "brand")
}

func (s *CatalogService) GetBrand(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Brand, error) {
	var (
		b   *entity.Brand
		err error
	)
	if oid, perr := primitive.ObjectIDFromHex(idOrSlug); perr == nil {
		b, err = s.brands.GetByID(ctx, oid)
	} else {
		b, err = s.brands.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, storeErr(err, "brand")
	}
	if !b.IsActive && !includeInactive {
		return nil, apperror.NotFound("brand")
	}
	return b, nil
}

func (s *CatalogService) ListBrands(ctx context.Context, q entity.ListQuery, includeInactive bool) (entity.Page[entity.Brand], error) {
	page, err := s.brands.List(ctx, q, includeInactive)
	if err != nil {
		return page, apperror.Internal(err)
	}
	return page, nil
}

func (s *CatalogService) ensureUnreferenced(ctx context.Context, field string, id primitive.ObjectID, resource string) error {
	n, err := s.products.CountByRef(ctx, field, id)
	if err != nil {
		return apperror.Internal(err)
	}
	if n > 0 {
		return apperror.Conflict(resource+"_in_use", resource+" still has products").
			WithDetails(map[string]int64{"product_count": n})
	}
	return nil
}

// ---- banners ----

type BannerInput struct {
	Title    string
	Subtitle string
	Image    string
	Link     string
	Position int
	IsActive *bool
	StartsAt *time.Time
	EndsAt   *time.Time
}

func validateWindow(in BannerInput) error {
	if in.StartsAt != nil && in.EndsAt != nil && !in.EndsAt.After(*in.StartsAt) {
		return apperror.Validation(map[string]string{"ends_at": "must be after starts_at"})
	}
	return nil
}

func (s *CatalogService) CreateBanner(ctx context.Context, in BannerInput) (*entity.Banner, error) {
	if err := validateWindow(in); err != nil {
		return nil, err
	}
	b := &entity.Banner{
		Title:    strings.TrimSpace(in.Title),
		Subtitle: in.Subtitle,
		Image:    in.Image,
		Link:     in.Link,
		Position: in.Position,
		IsActive: activeOr(in.IsActive, true),
		StartsAt: in.StartsAt,
		EndsAt:   in.EndsAt,
	}
	if err := s.banners.Create(ctx, b); err != nil {
		return nil, storeErr(err, "banner")
	}
	return b, nil
}

func (s *CatalogService) UpdateBanner(ctx context.Context, id string, in BannerInput) (*entity.Banner, error) {
	if err := validateWindow(in); err != nil {
		return nil, err
	}
	oid, err := parseID(id, "banner")
	if err != nil {
		return nil, err
	}
	b, err := s.banners.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "banner")
	}
	b.Title = strings.TrimSpace(in.Title)
	b.Subtitle = in.Subtitle
	b.Image = in.Image
	b.Link = in.Link
	b.Position = in.Position
	b.IsActive = activeOr(in.IsActive, b.IsActive)
	b.StartsAt, b.EndsAt = in.StartsAt, in.EndsAt
	if err := s.banners.Update(ctx, b); err != nil {
		return nil, storeErr(err, "banner")
	}
	return b, nil
}

func (s *CatalogService) DeleteBanner(ctx context.Context, id string) error {
	oid, err := parseID(id, "banner")
	if err != nil {
		return err
	}
	return storeErr(s.banners.Delete(ctx, oid), "banner")
}

func (s *CatalogService) GetBanner(ctx context.Context, id string) (*entity.Banner, error) {
	oid, err := parseID(id, "banner")
	if err != nil {
		return nil, err
	}
	b, err := s.banners.GetByID(ctx, oid)
	return b, storeErr(err, "banner")
}

func (s *CatalogService) ListBanners(ctx context.Context, q entity.ListQuery) (entity.Page[entity.Banner], error) {
	page, err := s.banners.List(ctx, q)
	if err != nil {
		return page, apperror.Internal(err)
	}
	return page, nil
}

// ActiveBanners returns banners live right now, by position.
func (s *CatalogService) ActiveBanners(ctx context.Context) ([]entity.Banner, error) {
	list, err := s.banners.Live(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return list, nil
}

// ---- products ----

type ProductInput struct {
	Name          string
	Slug          string
	Description   string
	BrandID       string
	CategoryID    string
	Price         float64
	DiscountPrice float64
	Stock         int
	Images        []string
	Gender        string
	Concentration string
	VolumeML      int
	Notes         entity.FragranceNotes
	Tags          []string
	IsFeatured    bool
	IsActive      *bool
}

// applyProductInput validates references and copies in onto p.
func (s *CatalogService) applyProductInput(ctx context.Context, p *entity.Product, in ProductInput) error {
	details := map[string]string{}
	brandID, err := primitive.ObjectIDFromHex(in.BrandID)
	if err == nil {
		if _, err = s.brands.GetByID(ctx, brandID); errors.Is(err, repo.ErrNotFound) {
			details["brand_id"] = "does not exist"
		} else if err != nil {
			return apperror.Internal(err)
		}
	} else {
		details["brand_id"] = "must be a valid id"
	}
	categoryID, err := primitive.ObjectIDFromHex(in.CategoryID)
	if err == nil {
		if _, err = s.categories.GetByID(ctx, categoryID); errors.Is(err, repo.ErrNotFound) {
			details["category_id"] = "does not exist"
		} else if err != nil {
			return apperror.Internal(err)
		}
	} else {
		details["category_id"] = "must be a valid id"
	}
	if in.DiscountPrice > 0 && in.DiscountPrice >= in.Price {
		details["discount_price"] = "must be lower than price"
	}
	if len(details) > 0 {
		return apperror.Validation(details)
	}

	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = slug
	p.Description = in.Description
	p.BrandID = brandID
	p.CategoryID = categoryID
	p.Price = helpers.Float(helpers.Money(in.Price))
	p.DiscountPrice = helpers.Float(helpers.Money(in.DiscountPrice))
	p.Stock = in.Stock
	p.Images = in.Images
	p.Gender = in.Gender
	p.Concentration = in.Concentration
	p.VolumeML = in.VolumeML
	p.Notes = entity.FragranceNotes{
		Top:    helpers.NormalizeTerms(in.Notes.Top),
		Middle: helpers.NormalizeTerms(in.Notes.Middle),
		Base:   helpers.NormalizeTerms(in.Notes.Base),
	}
	p.Tags = helpers.NormalizeTerms(in.Tags)
	p.IsFeatured = in.IsFeatured
	p.IsActive = activeOr(in.IsActive, p.IsActive || p.ID.IsZero())
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*entity.Product, error) {
	p := &entity.Product{}
	if err := s.applyProductInput(ctx, p, in); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, storeErr(err, "product")
	}
	s.afterProductWrite(ctx, p.ID)
	return s.reload(ctx, p)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*entity.Product, error) {
	oid, err := parseID(id, "product")
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, oid)
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if err := s.applyProductInput(ctx, p, in); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, storeErr(err, "product")
	}
	s.afterProductWrite(ctx, p.ID)
	return s.reload(ctx, p)
}

// reload re-reads p so the brand and category summaries are joined.
func (s *CatalogService) reload(ctx context.Context, p *entity.Product) (*entity.Product, error) {
	fresh, err := s.products.GetByID(ctx, p.ID)
	if err != nil {
		s.logger.WithError(err).WithField("product_id", p.ID.Hex()).Warn("product reload failed")
		return p, nil
	}
	return fresh, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	oid, err := parseID(id, "product")
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, oid); err != nil {
		return storeErr(err, "product")
	}
	s.invalidateProducts(ctx)
	if s.search != nil {
		if err := s.search.Delete(ctx, oid.Hex()); err != nil {
			s.logger.WithError(err).WithField("product_id", oid.Hex()).Warn("search delete failed")
		}
	}
	return nil
}

// afterProductWrite drops the cache and reindexes the product.
func (s *CatalogService) afterProductWrite(ctx context.Context, id primitive.ObjectID) {
	s.invalidateProducts(ctx)
	s.ReindexProduct(ctx, id)
}

// ReindexProduct pushes the current state of one product to the search index.
func (s *CatalogService) ReindexProduct(ctx context.Context, id primitive.ObjectID) {
	if s.search == nil {
		return
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("product_id", id.Hex()).Warn("reindex lookup failed")
		return
	}
	if err := s.search.Index(ctx, p); err != nil {
		s.logger.WithError(err).WithField("product_id", id.Hex()).Warn("search index failed")
	}
}

// GetProduct reads by id or slug. Public callers never see inactive products.
func (s *CatalogService) GetProduct(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Product, error) {
	key := "item:" + idOrSlug
	if !includeInactive && s.cache != nil {
		var p entity.Product
		if ok, err := s.cache.Get(ctx, key, &p); err == nil && ok {
			return &p, nil
		}
	}

	var (
		p   *entity.Product
		err error
	)
	if oid, perr := primitive.ObjectIDFromHex(idOrSlug); perr == nil {
		p, err = s.products.GetByID(ctx, oid)
	} else {
		p, err = s.products.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, storeErr(err, "product")
	}
	if !p.IsActive && !includeInactive {
		return nil, apperror.NotFound("product")
	}
	if !includeInactive && s.cache != nil {
		if err := s.cache.Set(ctx, key, p); err != nil {
			s.logger.WithError(err).Debug("product cache set failed")
		}
	}
	return p, nil
}

// ListProducts runs the filtered listing. Public listings are cached.
func (s *CatalogService) ListProducts(ctx context.Context, f entity.ProductFilter) (entity.Page[entity.Product], error) {
	f.Tags = helpers.NormalizeTerms(f.Tags)
	f.Notes = helpers.NormalizeTerms(f.Notes)
	cacheable := !f.IncludeInactive && s.cache != nil
	key := "list:" + cache.HashKey(f)
	if cacheable {
		var page entity.Page[entity.Product]
		if ok, err := s.cache.Get(ctx, key, &page); err == nil && ok {
			return page, nil
		}
	}
	page, err := s.products.List(ctx, f)
	if err != nil {
		return page, apperror.Internal(err)
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, page); err != nil {
			s.logger.WithError(err).Debug("product list cache set failed")
		}
	}
	return page, nil
}

// SearchProducts uses the search index and falls back to the regex listing.
func (s *CatalogService) SearchProducts(ctx context.Context, q string, limit int) ([]entity.Product, string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, "", apperror.Validation(map[string]string{"q": "is required"})
	}
	if limit < 1 || limit > maxSearchResults {
		limit = entity.DefaultPageSize
	}

	if s.search != nil {
		ids, err := s.search.Search(ctx, q, limit)
		if err == nil {
			products, err := s.productsInOrder(ctx, ids)
			if err == nil {
				return products, "search", nil
			}
			s.logger.WithError(err).Warn("search hydrate failed, falling back")
		} else {
			s.logger.WithError(err).Warn("search query failed, falling back")
		}
	}

	page, err := s.products.List(ctx, entity.ProductFilter{ListQuery: entity.ListQuery{Search: q, Limit: limit, Sort: "rating"}})
	if err != nil {
		return nil, "", apperror.Internal(err)
	}
	return page.Data, "database", nil
}

// productsInOrder loads active products for ids and keeps the index ranking.
func (s *CatalogService) productsInOrder(ctx context.Context, ids []string) ([]entity.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []entity.Product{}, nil
	}
	page, err := s.products.List(ctx, entity.ProductFilter{IDs: oids, ListQuery: entity.ListQuery{Limit: len(oids)}})
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]entity.Product, len(page.Data))
	for _, p := range page.Data {
		byID[p.ID] = p
	}
	out := make([]entity.Product, 0, len(page.Data))
	for _, oid := range oids {
		if p, ok := byID[oid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
