package modules

import (
	"expvar"
	"time"

	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
	"github.com/oksasatya/perfume-storefront/internal/interface/middleware"
)

type UploadModule struct {
	Handler *handlers.UploadHandler
	Guard   Guard
}

func NewUploadModule(h *handlers.UploadHandler, g Guard) *UploadModule {
	return &UploadModule{Handler: h, Guard: g}
}

func (m *UploadModule) Register(rg *gin.RouterGroup) {
	admin := m.Guard.Admin(rg)
	admin.POST("/uploads/images", m.Handler.UploadImage)
	admin.DELETE("/uploads/images", m.Handler.DeleteImage)
}

type RecommendationModule struct {
	Handler *handlers.RecommendationHandler
	Guard   Guard
}

func NewRecommendationModule(h *handlers.RecommendationHandler, g Guard) *RecommendationModule {
	return &RecommendationModule{Handler: h, Guard: g}
}

func (m *RecommendationModule) Register(rg *gin.RouterGroup) {
	// public, but every miss may cost a model call
	rg.POST("/recommendations", m.Guard.ipLimit("recommend", 20), m.Handler.Recommend)
}

type EmailModule struct {
	Handler *handlers.EmailHandler
	Guard   Guard
}

func NewEmailModule(h *handlers.EmailHandler, g Guard) *EmailModule {
	return &EmailModule{Handler: h, Guard: g}
}

func (m *EmailModule) Register(rg *gin.RouterGroup) {
	m.Guard.Admin(rg).POST("/email/send", m.Handler.Send)
}

type HealthModule struct {
	Handler *handlers.HealthHandler
	Guard   Guard
}

func NewHealthModule(h *handlers.HealthHandler, g Guard) *HealthModule {
	return &HealthModule{Handler: h, Guard: g}
}

func (m *HealthModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(m.Guard.Redis, 60, time.Minute, middleware.KeyByIP("health"), middleware.AllowPrivateIP())
	rg.GET("/health", rl, m.Handler.Health)
}

type DebugModule struct {
	Guard Guard
}

func NewDebugModule(g Guard) *DebugModule { return &DebugModule{Guard: g} }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rg.GET("/debug/vars", m.Guard.ipLimit("debug", 120), gin.WrapH(expvar.Handler()))
}
