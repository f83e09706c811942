package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/pkg/apperror"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

var uploadFolders = map[string]bool{"products": true, "brands": true, "categories": true, "banners": true}

type UploadHandler struct {
	Svc *application.UploadService
}

func NewUploadHandler(svc *application.UploadService) *UploadHandler {
	return &UploadHandler{Svc: svc}
}

// UploadImage POST /api/admin/uploads/images (multipart "image", optional "folder")
func (h *UploadHandler) UploadImage(c *gin.Context) {
	data, err := readImage(c, h.Svc.MaxBytes())
	if err != nil {
		fail(c, err)
		return
	}
	folder := strings.ToLower(strings.TrimSpace(c.PostForm("folder")))
	if folder == "" {
		folder = "products"
	}
	if !uploadFolders[folder] {
		fail(c, apperror.Validation(map[string]string{"folder": "must be one of: products, brands, categories, banners"}))
		return
	}
	img, err := h.Svc.UploadImage(c.Request.Context(), folder+"/", data)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, img, "image uploaded", nil)
}

// DeleteImage DELETE /api/admin/uploads/images?public_id=
func (h *UploadHandler) DeleteImage(c *gin.Context) {
	if err := h.Svc.DeleteImage(c.Request.Context(), c.Query("public_id")); err != nil {
		fail(c, err)
		return
	}
	deleted(c, "image")
}
