package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/internal/interface/middleware"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

const perUserLimit = 120

// Guard builds the authenticated and admin route groups shared by modules.
type Guard struct {
	Sessions *cache.SessionStore
	JWT      *helpers.JWTManager
	Redis    redis.Cmdable
}

// ipLimit is a per-IP limiter in its own bucket.
func (g Guard) ipLimit(bucket string, max int) gin.HandlerFunc {
	return middleware.RateLimit(g.Redis, max, time.Minute, middleware.KeyByIP(bucket), nil)
}

// Protected requires a live session and applies the per-user limit.
func (g Guard) Protected(rg *gin.RouterGroup) *gin.RouterGroup {
	grp := rg.Group("/")
	grp.Use(
		middleware.Auth(g.Sessions, g.JWT),
		middleware.RateLimit(g.Redis, perUserLimit, time.Minute, middleware.KeyByUserID(), nil),
	)
	return grp
}

// Admin is Protected plus the admin role, mounted under /admin.
func (g Guard) Admin(rg *gin.RouterGroup) *gin.RouterGroup {
	grp := g.Protected(rg).Group("/admin")
	grp.Use(middleware.RequireRole(entity.RoleAdmin))
	return grp
}
