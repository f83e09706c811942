package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type CatalogHandler struct {
	Svc *application.CatalogService
}

func NewCatalogHandler(svc *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{Svc: svc}
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"omitempty,slug,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Image       string `json:"image" binding:"omitempty,url"`
	IsActive    *bool  `json:"is_active"`
}

type brandRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"omitempty,slug,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Logo        string `json:"logo" binding:"omitempty,url"`
	Country     string `json:"country" binding:"max=60"`
	IsActive    *bool  `json:"is_active"`
}

type bannerRequest struct {
	Title    string     `json:"title" binding:"required,max=150"`
	Subtitle string     `json:"subtitle" binding:"max=300"`
	Image    string     `json:"image" binding:"required,url"`
	Link     string     `json:"link" binding:"max=500"`
	Position int        `json:"position" binding:"min=0"`
	IsActive *bool      `json:"is_active"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

type notesRequest struct {
	Top    []string `json:"top" binding:"max=20"`
	Middle []string `json:"middle" binding:"max=20"`
	Base   []string `json:"base" binding:"max=20"`
}

type productRequest struct {
	Name          string       `json:"name" binding:"required,max=200"`
	Slug          string       `json:"slug" binding:"omitempty,slug,max=220"`
	Description   string       `json:"description" binding:"max=5000"`
	BrandID       string       `json:"brand_id" binding:"required,objectid"`
	CategoryID    string       `json:"category_id" binding:"required,objectid"`
	Price         float64      `json:"price" binding:"required,gt=0"`
	DiscountPrice float64      `json:"discount_price" binding:"gte=0"`
	Stock         int          `json:"stock" binding:"gte=0"`
	Images        []string     `json:"images" binding:"max=10,dive,url"`
	Gender        string       `json:"gender" binding:"required,oneof=men women unisex"`
	Concentration string       `json:"concentration" binding:"omitempty,oneof=parfum edp edt edc attar"`
	VolumeML      int          `json:"volume_ml" binding:"gte=0,lte=1000"`
	Notes         notesRequest `json:"notes"`
	Tags          []string     `json:"tags" binding:"max=20"`
	IsFeatured    bool         `json:"is_featured"`
	IsActive      *bool        `json:"is_active"`
}

func (r productRequest) input() application.ProductInput {
	return application.ProductInput{
		Name:          r.Name,
		Slug:          r.Slug,
		Description:   r.Description,
		BrandID:       r.BrandID,
		CategoryID:    r.CategoryID,
		Price:         r.Price,
		DiscountPrice: r.DiscountPrice,
		Stock:         r.Stock,
		Images:        r.Images,
		Gender:        r.Gender,
		Concentration: r.Concentration,
		VolumeML:      r.VolumeML,
		Notes:         entity.FragranceNotes{Top: r.Notes.Top, Middle: r.Notes.Middle, Base: r.Notes.Base},
		Tags:          r.Tags,
		IsFeatured:    r.IsFeatured,
		IsActive:      r.IsActive,
	}
}

func (r categoryRequest) input() application.CategoryInput {
	return application.CategoryInput{Name: r.Name, Slug: r.Slug, Description: r.Description, Image: r.Image, IsActive: r.IsActive}
}

func (r brandRequest) input() application.BrandInput {
	return application.BrandInput{Name: r.Name, Slug: r.Slug, Description: r.Description, Logo: r.Logo, Country: r.Country, IsActive: r.IsActive}
}

func (r bannerRequest) input() application.BannerInput {
	return application.BannerInput{
		Title:    r.Title,
		Subtitle: r.Subtitle,
		Image:    r.Image,
		Link:     r.Link,
		Position: r.Position,
		IsActive: r.IsActive,
		StartsAt: r.StartsAt,
		EndsAt:   r.EndsAt,
	}
}

func deleted(c *gin.Context, what string) {
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, what+" deleted", nil)
}

// ---- categories ----

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	q := listQuery(c)
	page, err := h.Svc.ListCategories(c.Request.Context(), q, isAdmin(c) && queryBool(c, "includeInactive"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "categories", pageMeta(q))
}

func (h *CatalogHandler) GetCategory(c *gin.Context) {
	cat, err := h.Svc.GetCategory(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, cat, "category", nil)
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.Svc.CreateCategory(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, cat, "category created", nil)
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.Svc.UpdateCategory(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, cat, "category updated", nil)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	if err := h.Svc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	deleted(c, "category")
}

// ---- brands ----

func (h *CatalogHandler) ListBrands(c *gin.Context) {
	q := listQuery(c)
	page, err := h.Svc.ListBrands(c.Request.Context(), q, isAdmin(c) && queryBool(c, "includeInactive"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "brands", pageMeta(q))
}

func (h *CatalogHandler) GetBrand(c *gin.Context) {
	b, err := h.Svc.GetBrand(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b, "brand", nil)
}

func (h *CatalogHandler) CreateBrand(c *gin.Context) {
	var req brandRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.Svc.CreateBrand(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b, "brand created", nil)
}

func (h *CatalogHandler) UpdateBrand(c *gin.Context) {
	var req brandRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.Svc.UpdateBrand(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b, "brand updated", nil)
}

func (h *CatalogHandler) DeleteBrand(c *gin.Context) {
	if err := h.Svc.DeleteBrand(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	deleted(c, "brand")
}

// ---- banners ----

func (h *CatalogHandler) ActiveBanners(c *gin.Context) {
	list, err := h.Svc.ActiveBanners(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, list, "active banners", nil)
}

func (h *CatalogHandler) ListBanners(c *gin.Context) {
	q := listQuery(c)
	page, err := h.Svc.ListBanners(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "banners", pageMeta(q))
}

func (h *CatalogHandler) GetBanner(c *gin.Context) {
	b, err := h.Svc.GetBanner(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b, "banner", nil)
}

func (h *CatalogHandler) CreateBanner(c *gin.Context) {
	var req bannerRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.Svc.CreateBanner(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, b, "banner created", nil)
}

func (h *CatalogHandler) UpdateBanner(c *gin.Context) {
	var req bannerRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.Svc.UpdateBanner(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, b, "banner updated", nil)
}

func (h *CatalogHandler) DeleteBanner(c *gin.Context) {
	if err := h.Svc.DeleteBanner(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	deleted(c, "banner")
}

// ---- products ----

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	f := productFilter(c)
	page, err := h.Svc.ListProducts(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, page, "products", pageMeta(f.ListQuery))
}

// SearchProducts GET /api/products/search?q&limit
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	products, source, err := h.Svc.SearchProducts(c.Request.Context(), c.Query("q"), queryInt(c, "limit", entity.DefaultPageSize))
	if err != nil {
		fail(c, err)
		return
	}
	if products == nil {
		products = []entity.Product{}
	}
	response.Success(c, http.StatusOK, products, "search results", gin.H{"source": source})
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.Svc.GetProduct(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "product", nil)
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Svc.CreateProduct(c.Request.Context(), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, p, "product created", nil)
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.Svc.UpdateProduct(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, p, "product updated", nil)
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	if err := h.Svc.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	deleted(c, "product")
}
