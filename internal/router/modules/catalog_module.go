package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
)

// CatalogModule serves public catalog reads and admin catalog writes.
type CatalogModule struct {
	Handler *handlers.CatalogHandler
	Guard   Guard
}

func NewCatalogModule(h *handlers.CatalogHandler, g Guard) *CatalogModule {
	return &CatalogModule{Handler: h, Guard: g}
}

func (m *CatalogModule) Register(rg *gin.RouterGroup) {
	h := m.Handler

	rg.GET("/categories", h.ListCategories)
	rg.GET("/categories/:id", h.GetCategory)
	rg.GET("/brands", h.ListBrands)
	rg.GET("/brands/:id", h.GetBrand)
	rg.GET("/banners/active", h.ActiveBanners)
	rg.GET("/products", h.ListProducts)
	rg.GET("/products/search", m.Guard.ipLimit("search", 60), h.SearchProducts)
	rg.GET("/products/:id", h.GetProduct)

	admin := m.Guard.Admin(rg)
	{
		admin.GET("/categories", h.ListCategories)
		admin.GET("/categories/:id", h.GetCategory)
		admin.POST("/categories", h.CreateCategory)
		admin.PUT("/categories/:id", h.UpdateCategory)
		admin.DELETE("/categories/:id", h.DeleteCategory)

		admin.GET("/brands", h.ListBrands)
		admin.GET("/brands/:id", h.GetBrand)
		admin.POST("/brands", h.CreateBrand)
		admin.PUT("/brands/:id", h.UpdateBrand)
		admin.DELETE("/brands/:id", h.DeleteBrand)

		admin.GET("/banners", h.ListBanners)
		admin.GET("/banners/:id", h.GetBanner)
		admin.POST("/banners", h.CreateBanner)
		admin.PUT("/banners/:id", h.UpdateBanner)
		admin.DELETE("/banners/:id", h.DeleteBanner)

		admin.GET("/products", h.ListProducts)
		admin.GET("/products/:id", h.GetProduct)
		admin.POST("/products", h.CreateProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
	}
}
