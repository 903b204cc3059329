package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// DashboardHandler handles dashboard-related requests
type DashboardHandler struct {
	dashboard service.IDashboardService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(dashboard service.IDashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// RegisterRoutes registers the dashboard routes
func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard/:user_id", h.GetDashboard)
}

// DashboardResponse is today's summary with every figure rounded to one decimal.
type DashboardResponse struct {
	UserID          string                 `json:"user_id"`
	Date            string                 `json:"date"`
	DailyGoal       float64                `json:"daily_goal"`
	TotalConsumed   float64                `json:"total_consumed"`
	Remaining       float64                `json:"remaining"`
	MealsToday      int                    `json:"meals_today"`
	NutritionTotals models.NutritionTotals `json:"nutrition_totals"`
}

// GetDashboard handles GET /dashboard/:user_id.
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	summary, err := h.dashboard.Summary(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, DashboardResponse{
		UserID:        summary.UserID,
		Date:          summary.Date,
		DailyGoal:     round1(summary.DailyGoal),
		TotalConsumed: round1(summary.TotalConsumed),
		Remaining:     round1(summary.Remaining),
		MealsToday:    summary.MealsToday,
		NutritionTotals: models.NutritionTotals{
			Calories: round1(summary.NutritionTotals.Calories),
			Protein:  round1(summary.NutritionTotals.Protein),
			Carbs:    round1(summary.NutritionTotals.Carbs),
			Fats:     round1(summary.NutritionTotals.Fats),
		},
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
