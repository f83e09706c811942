package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
)

// AuthModule: register, login, refresh, logout and the verify/reset flows.
type AuthModule struct {
	Handler *handlers.AuthHandler
	Guard   Guard
}

func NewAuthModule(h *handlers.AuthHandler, g Guard) *AuthModule {
	return &AuthModule{Handler: h, Guard: g}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	credentials := m.Guard.ipLimit("auth", 10)
	rg.POST("/register", credentials, m.Handler.Register)
	rg.POST("/login", credentials, m.Handler.Login)
	rg.POST("/refresh", m.Guard.ipLimit("refresh", 60), m.Handler.Refresh)

	rg.POST("/auth/verify/confirm", m.Guard.ipLimit("verify", 30), m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", m.Guard.ipLimit("reset-init", 5), m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", m.Guard.ipLimit("reset", 30), m.Handler.ResetConfirm)

	auth := m.Guard.Protected(rg)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/auth/verify/init", m.Handler.VerifyInit)
	}
}
