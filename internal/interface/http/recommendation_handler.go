package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/pkg/response"
)

type RecommendationHandler struct {
	Svc *application.RecommendationService
}

func NewRecommendationHandler(svc *application.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{Svc: svc}
}

type recommendRequest struct {
	Gender         string   `json:"gender" binding:"omitempty,oneof=men women unisex"`
	Occasion       string   `json:"occasion" binding:"max=40"`
	Season         string   `json:"season" binding:"max=40"`
	PreferredNotes []string `json:"preferred_notes" binding:"max=15,dive,max=40"`
	BudgetMax      float64  `json:"budget_max" binding:"gte=0"`
	Limit          int      `json:"limit" binding:"omitempty,min=1,max=10"`
}

// Recommend POST /api/recommendations
func (h *RecommendationHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.Svc.Recommend(c.Request.Context(), application.RecommendInput{
		Gender:         req.Gender,
		Occasion:       req.Occasion,
		Season:         req.Season,
		PreferredNotes: req.PreferredNotes,
		BudgetMax:      req.BudgetMax,
		Limit:          req.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "recommendations", nil)
}
