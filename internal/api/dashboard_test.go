package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/nutrisnap/backend/internal/mocks"
	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

func TestGetDashboard(t *testing.T) {
	dashboard := new(mocks.MockDashboardService)
	dashboard.On("Summary", mock.Anything, "test_user").Return(&service.DailySummary{
		UserID:          "test_user",
		Date:            "2026-03-01",
		DailyGoal:       2000,
		TotalConsumed:   850.04,
		Remaining:       1149.96,
		MealsToday:      2,
		NutritionTotals: models.NutritionTotals{Calories: 850.04, Protein: 40.26, Carbs: 90, Fats: 30.56},
	}, nil)

	r := newTestRouter(NewDashboardHandler(dashboard))
	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/test_user", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	var got DashboardResponse
	decode(t, w, &got)
	assert.Equal(t, 2000.0, got.DailyGoal)
	assert.Equal(t, 850.0, got.TotalConsumed)
	assert.Equal(t, 1150.0, got.Remaining)
	assert.Equal(t, 2, got.MealsToday)
	assert.Equal(t, 40.3, got.NutritionTotals.Protein)
	assert.Equal(t, 30.6, got.NutritionTotals.Fats)
}

func TestGetDashboard_NegativeRemaining(t *testing.T) {
	dashboard := new(mocks.MockDashboardService)
	dashboard.On("Summary", mock.Anything, "u").Return(&service.DailySummary{
		UserID: "u", DailyGoal: 2500, TotalConsumed: 2700, Remaining: -200, MealsToday: 4,
	}, nil)

	r := newTestRouter(NewDashboardHandler(dashboard))
	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/u", nil, "")

	var got DashboardResponse
	decode(t, w, &got)
	assert.Equal(t, -200.0, got.Remaining)
}

func TestGetDashboard_StoreError(t *testing.T) {
	dashboard := new(mocks.MockDashboardService)
	dashboard.On("Summary", mock.Anything, "u").Return(nil, errors.New("failed to load meals: db closed"))

	r := newTestRouter(NewDashboardHandler(dashboard))
	w := doRequest(r, http.MethodGet, "/api/v1/dashboard/u", nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
