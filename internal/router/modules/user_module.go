package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
)

// UserModule wires profile routes and admin user management.
// Protected: GET/PUT /api/profile, POST /api/profile/avatar
// Admin: /api/admin/users
type UserModule struct {
	Handler *handlers.UserHandler
	Guard   Guard
}

func NewUserModule(h *handlers.UserHandler, g Guard) *UserModule {
	return &UserModule{Handler: h, Guard: g}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := m.Guard.Protected(rg)
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
	}

	admin := m.Guard.Admin(rg)
	{
		admin.GET("/users", m.Handler.ListUsers)
		admin.GET("/users/:id", m.Handler.GetUser)
		admin.PATCH("/users/:id/role", m.Handler.SetRole)
		admin.DELETE("/users/:id", m.Handler.DeleteUser)
	}
}
