package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type UserHandler struct {
	Svc      *application.UserService
	MaxBytes int64
}

func NewUserHandler(svc *application.UserService, maxBytes int64) *UserHandler {
	return &UserHandler{Svc: svc, MaxBytes: maxBytes}
}

type updateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=100"`
	Phone *string `json:"phone" binding:"omitempty,phone"`
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin customer"`
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	u, err := h.Svc.Profile(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "profile", nil)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), userID(c), application.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
	}, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "profile updated", nil)
}

// UploadAvatar POST /api/profile/avatar (multipart "image")
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	data, err := readImage(c, h.MaxBytes)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.Svc.UploadAvatar(c.Request.Context(), userID(c), data, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "avatar updated", nil)
}

// ListUsers GET /api/admin/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	q := listQuery(c)
	page, err := h.Svc.ListUsers(c.Request.Context(), entity.UserFilter{
		Search:    q.Search,
		Role:      strings.ToLower(c.Query("role")),
		ListQuery: q,
	})
	if err != nil {
		fail(c, err)
		return
	}
	views := make([]userView, 0, len(page.Data))
	for i := range page.Data {
		views = append(views, toUserView(&page.Data[i]))
	}
	response.Success(c, http.StatusOK, response.ListData[userView]{Data: views, TotalCount: page.TotalCount}, "users", pageMeta(q))
}

// GetUser GET /api/admin/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	u, err := h.Svc.UserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "user", nil)
}

// SetRole PATCH /api/admin/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	var req setRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Svc.SetRole(c.Request.Context(), userID(c), c.Param("id"), req.Role, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, toUserView(u), "role updated", nil)
}

// DeleteUser DELETE /api/admin/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.Svc.DeleteUser(c.Request.Context(), userID(c), c.Param("id"), requestMeta(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "user deleted", nil)
}

// readImage reads the multipart "image" field, refusing anything over maxBytes.
func readImage(c *gin.Context, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		// headroom for the multipart envelope
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, apperror.Validation(map[string]string{"image": "is required"})
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, apperror.New(http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.BadRequest("invalid_upload", "could not read the uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperror.BadRequest("invalid_upload", "could not read the uploaded file")
	}
	return data, nil
}
