package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

type seedFile struct {
	Brands     []seedBrand    `yaml:"brands"`
	Categories []seedCategory `yaml:"categories"`
	Products   []seedProduct  `yaml:"products"`
	Banners    []seedBanner   `yaml:"banners"`
}

type seedBrand struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	Logo        string `yaml:"logo"`
	Country     string `yaml:"country"`
}

type seedCategory struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// seedProduct refers to its brand and category by slug.
type seedProduct struct {
	Name          string   `yaml:"name"`
	Slug          string   `yaml:"slug"`
	Description   string   `yaml:"description"`
	Brand         string   `yaml:"brand"`
	Category      string   `yaml:"category"`
	Price         float64  `yaml:"price"`
	DiscountPrice float64  `yaml:"discount_price"`
	Stock         int      `yaml:"stock"`
	Images        []string `yaml:"images"`
	Gender        string   `yaml:"gender"`
	Concentration string   `yaml:"concentration"`
	VolumeML      int      `yaml:"volume_ml"`
	Notes         struct {
		Top    []string `yaml:"top"`
		Middle []string `yaml:"middle"`
		Base   []string `yaml:"base"`
	} `yaml:"notes"`
	Tags     []string `yaml:"tags"`
	Featured bool     `yaml:"featured"`
}

type seedBanner struct {
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Image    string `yaml:"image"`
	Link     string `yaml:"link"`
	Position int    `yaml:"position"`
}

func loadSeed(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i := range f.Brands {
		if f.Brands[i].Slug == "" {
			f.Brands[i].Slug = helpers.Slugify(f.Brands[i].Name)
		}
	}
	for i := range f.Categories {
		if f.Categories[i].Slug == "" {
			f.Categories[i].Slug = helpers.Slugify(f.Categories[i].Name)
		}
	}
	for i, p := range f.Products {
		if p.Slug == "" {
			f.Products[i].Slug = helpers.Slugify(p.Name)
		}
		if p.Brand == "" || p.Category == "" {
			return nil, fmt.Errorf("product %q: brand and category are required", p.Name)
		}
	}
	return &f, nil
}

// catalogWriter is the part of the catalog service the seeder drives.
type catalogWriter interface {
	GetBrand(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Brand, error)
	CreateBrand(ctx context.Context, in application.BrandInput) (*entity.Brand, error)
	UpdateBrand(ctx context.Context, id string, in application.BrandInput) (*entity.Brand, error)
	GetCategory(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Category, error)
	CreateCategory(ctx context.Context, in application.CategoryInput) (*entity.Category, error)
	UpdateCategory(ctx context.Context, id string, in application.CategoryInput) (*entity.Category, error)
	GetProduct(ctx context.Context, idOrSlug string, includeInactive bool) (*entity.Product, error)
	CreateProduct(ctx context.Context, in application.ProductInput) (*entity.Product, error)
	UpdateProduct(ctx context.Context, id string, in application.ProductInput) (*entity.Product, error)
	ListBanners(ctx context.Context, q entity.ListQuery) (entity.Page[entity.Banner], error)
	CreateBanner(ctx context.Context, in application.BannerInput) (*entity.Banner, error)
	UpdateBanner(ctx context.Context, id string, in application.BannerInput) (*entity.Banner, error)
}

type seedResult struct {
	Brands, Categories, Products, Banners int
}

type seeder struct {
	catalog    catalogWriter
	brandIDs   map[string]string
	categoryID map[string]string
}

func newSeeder(c catalogWriter) *seeder {
	return &seeder{catalog: c, brandIDs: map[string]string{}, categoryID: map[string]string{}}
}

var errNotFound = apperror.NotFound("")

// Run upserts by slug (banners by title), so running it twice changes nothing.
func (s *seeder) Run(ctx context.Context, f *seedFile) (seedResult, error) {
	var res seedResult
	for _, b := range f.Brands {
		in := application.BrandInput{Name: b.Name, Slug: b.Slug, Description: b.Description, Logo: b.Logo, Country: b.Country}
		var out *entity.Brand
		existing, err := s.catalog.GetBrand(ctx, b.Slug, true)
		switch {
		case err == nil:
			out, err = s.catalog.UpdateBrand(ctx, existing.ID.Hex(), in)
		case errors.Is(err, errNotFound):
			out, err = s.catalog.CreateBrand(ctx, in)
		}
		if err != nil {
			return res, fmt.Errorf("brand %s: %w", b.Slug, err)
		}
		s.brandIDs[b.Slug] = out.ID.Hex()
		res.Brands++
	}

	for _, c := range f.Categories {
		in := application.CategoryInput{Name: c.Name, Slug: c.Slug, Description: c.Description, Image: c.Image}
		var out *entity.Category
		existing, err := s.catalog.GetCategory(ctx, c.Slug, true)
		switch {
		case err == nil:
			out, err = s.catalog.UpdateCategory(ctx, existing.ID.Hex(), in)
		case errors.Is(err, errNotFound):
			out, err = s.catalog.CreateCategory(ctx, in)
		}
		if err != nil {
			return res, fmt.Errorf("category %s: %w", c.Slug, err)
		}
		s.categoryID[c.Slug] = out.ID.Hex()
		res.Categories++
	}

	for _, p := range f.Products {
		brandID, err := s.brandID(ctx, p.Brand)
		if err != nil {
			return res, fmt.Errorf("product %s: %w", p.Slug, err)
		}
		categoryID, err := s.categoryIDFor(ctx, p.Category)
		if err != nil {
			return res, fmt.Errorf("product %s: %w", p.Slug, err)
		}
		in := application.ProductInput{
			Name:          p.Name,
			Slug:          p.Slug,
			Description:   p.Description,
			BrandID:       brandID,
			CategoryID:    categoryID,
			Price:         p.Price,
			DiscountPrice: p.DiscountPrice,
			Stock:         p.Stock,
			Images:        p.Images,
			Gender:        p.Gender,
			Concentration: p.Concentration,
			VolumeML:      p.VolumeML,
			Notes:         entity.FragranceNotes{Top: p.Notes.Top, Middle: p.Notes.Middle, Base: p.Notes.Base},
			Tags:          p.Tags,
			IsFeatured:    p.Featured,
		}
		existing, err := s.catalog.GetProduct(ctx, p.Slug, true)
		switch {
		case err == nil:
			_, err = s.catalog.UpdateProduct(ctx, existing.ID.Hex(), in)
		case errors.Is(err, errNotFound):
			_, err = s.catalog.CreateProduct(ctx, in)
		}
		if err != nil {
			return res, fmt.Errorf("product %s: %w", p.Slug, err)
		}
		res.Products++
	}

	for _, b := range f.Banners {
		in := application.BannerInput{Title: b.Title, Subtitle: b.Subtitle, Image: b.Image, Link: b.Link, Position: b.Position}
		id, err := s.bannerByTitle(ctx, b.Title)
		if err == nil {
			if id != "" {
				_, err = s.catalog.UpdateBanner(ctx, id, in)
			} else {
				_, err = s.catalog.CreateBanner(ctx, in)
			}
		}
		if err != nil {
			return res, fmt.Errorf("banner %q: %w", b.Title, err)
		}
		res.Banners++
	}
	return res, nil
}

func (s *seeder) brandID(ctx context.Context, slug string) (string, error) {
	if id, ok := s.brandIDs[slug]; ok {
		return id, nil
	}
	b, err := s.catalog.GetBrand(ctx, slug, true)
	if err != nil {
		return "", fmt.Errorf("brand %s: %w", slug, err)
	}
	s.brandIDs[slug] = b.ID.Hex()
	return b.ID.Hex(), nil
}

func (s *seeder) categoryIDFor(ctx context.Context, slug string) (string, error) {
	if id, ok := s.categoryID[slug]; ok {
		return id, nil
	}
	c, err := s.catalog.GetCategory(ctx, slug, true)
	if err != nil {
		return "", fmt.Errorf("category %s: %w", slug, err)
	}
	s.categoryID[slug] = c.ID.Hex()
	return c.ID.Hex(), nil
}

func (s *seeder) bannerByTitle(ctx context.Context, title string) (string, error) {
	page, err := s.catalog.ListBanners(ctx, entity.ListQuery{Search: title, Limit: entity.MaxPageSize})
	if err != nil {
		return "", err
	}
	for _, b := range page.Data {
		if strings.EqualFold(b.Title, title) {
			return b.ID.Hex(), nil
		}
	}
	return "", nil
}

type adminUsers interface {
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetVerified(ctx context.Context, id string) error
	SetRole(ctx context.Context, id, role string) error
}

// upsertAdmin creates the account or resets its password, then grants admin.
func upsertAdmin(ctx context.Context, users adminUsers, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < 8 {
		return fmt.Errorf("admin password must be at least 8 characters")
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return err
	}

	u, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u = &entity.User{Email: email, Password: hash, Name: "Store Admin", Roles: []string{entity.RoleAdmin}}
		if err := users.Create(ctx, u); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := users.UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}
		if err := users.SetRole(ctx, u.ID, entity.RoleAdmin); err != nil {
			return err
		}
	}
	return users.SetVerified(ctx, u.ID)
}
