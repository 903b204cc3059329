package api

import (
	"bytes"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/nutrisnap/backend/internal/middleware"
	"github.com/pageza/nutrisnap/backend/internal/mocks"
	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newMealHandler(p *mocks.MockMealPipeline, s *mocks.MockMealStore) *MealHandler {
	return NewMealHandler(p, s, 1024, time.UTC, nil)
}

func TestAnalyze(t *testing.T) {
	pipeline := new(mocks.MockMealPipeline)
	pipeline.On("Analyze", mock.Anything, pngHeader).
		Return(&service.AnalysisResult{DetectedText: "Couscous with lamb", ImageReference: "https://bucket/meal.png"}, nil)

	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))
	body, ct := multipartImage(t, "image", pngHeader)
	w := doRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	assert.Equal(t, http.StatusOK, w.Code)
	var got service.AnalysisResult
	decode(t, w, &got)
	assert.Equal(t, "Couscous with lamb", got.DetectedText)
	assert.Equal(t, "https://bucket/meal.png", got.ImageReference)
	pipeline.AssertExpectations(t)
}

func TestAnalyze_MissingField(t *testing.T) {
	pipeline := new(mocks.MockMealPipeline)
	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))

	body, ct := multipartImage(t, "photo", pngHeader)
	w := doRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var got middleware.ErrorResponse
	decode(t, w, &got)
	assert.Equal(t, "invalid_input", got.Category)
	pipeline.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalyze_OversizedUploadIsTruncatedForValidation(t *testing.T) {
	pipeline := new(mocks.MockMealPipeline)
	pipeline.On("Analyze", mock.Anything, mock.MatchedBy(func(b []byte) bool { return len(b) == 1025 })).
		Return(nil, &service.InvalidInputError{Field: "image", Reason: "too large"})

	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))
	body, ct := multipartImage(t, "image", append(pngHeader, bytes.Repeat([]byte{0}, 4096)...))
	w := doRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pipeline.AssertExpectations(t)
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	pipeline := new(mocks.MockMealPipeline)
	cause := &service.UpstreamError{Provider: "vision", Kind: service.ErrUpstreamUnavailable, StatusCode: 503, Err: errors.New("down")}
	pipeline.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, &service.StageError{Stage: "vision", Kind: service.ErrAnalysisFailed, Err: cause})

	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))
	body, ct := multipartImage(t, "image", pngHeader)
	w := doRequest(r, http.MethodPost, "/api/v1/analyze", body, ct)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var got middleware.ErrorResponse
	decode(t, w, &got)
	assert.Equal(t, "analysis_failed", got.Category)
	assert.True(t, got.Retryable)
}

func TestLogMeal(t *testing.T) {
	mealID := uuid.New()
	pipeline := new(mocks.MockMealPipeline)
	pipeline.On("LogMeal", mock.Anything, service.LogMealRequest{
		UserID:       "test_user",
		VerifiedText: "Couscous with lamb and vegetables",
		MealID:       mealID,
	}).Return(&models.MealLog{
		ID:           mealID,
		UserID:       "test_user",
		DishName:     "Couscous with lamb and vegetables",
		VerifiedText: "Couscous with lamb and vegetables",
		Nutrition:    models.NutritionTotals{Calories: 350, Protein: 15, Carbs: 35, Fats: 8},
		Items:        models.NutritionItems{},
		AIAdvice:     "Add some greens tonight.",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil)

	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))
	w := doJSON(t, r, "POST", "/api/v1/meals", LogMealRequest{
		UserID:       "test_user",
		VerifiedText: "Couscous with lamb and vegetables",
		MealID:       mealID.String(),
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var got map[string]interface{}
	decode(t, w, &got)
	assert.Equal(t, mealID.String(), got["meal_id"])
	assert.Equal(t, "Add some greens tonight.", got["ai_advice"])
	assert.Equal(t, 350.0, got["nutrition"].(map[string]interface{})["calories"])
	pipeline.AssertExpectations(t)
}

func TestLogMeal_BadMealID(t *testing.T) {
	pipeline := new(mocks.MockMealPipeline)
	r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))

	w := doJSON(t, r, "POST", "/api/v1/meals", LogMealRequest{UserID: "u", VerifiedText: "tea", MealID: "not-a-uuid"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pipeline.AssertNotCalled(t, "LogMeal", mock.Anything, mock.Anything)
}

func TestLogMeal_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		category string
	}{
		{"blank text", &service.InvalidInputError{Field: "verified_text", Reason: "must not be empty"}, http.StatusBadRequest, "invalid_input"},
		{"nutrition schema", &service.StageError{Stage: "nutrition", Kind: service.ErrQuantificationFailed,
			Err: &service.UpstreamError{Provider: "nutrition", Kind: service.ErrUpstreamSchema}}, http.StatusBadGateway, "quantification_failed"},
		{"duplicate", &service.StageError{Stage: "persist", Kind: service.ErrPersistence, Err: service.ErrDuplicateID}, http.StatusConflict, "duplicate_id"},
		{"store down", &service.StageError{Stage: "persist", Kind: service.ErrPersistence, Err: errors.New("db closed")}, http.StatusInternalServerError, "persistence_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := new(mocks.MockMealPipeline)
			pipeline.On("LogMeal", mock.Anything, mock.Anything).Return(nil, tt.err)
			r := newTestRouter(newMealHandler(pipeline, new(mocks.MockMealStore)))

			w := doJSON(t, r, "POST", "/api/v1/meals", LogMealRequest{UserID: "u", VerifiedText: "x"})

			assert.Equal(t, tt.status, w.Code)
			var got middleware.ErrorResponse
			decode(t, w, &got)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestGetMeal(t *testing.T) {
	id := uuid.New()
	store := new(mocks.MockMealStore)
	store.On("Get", mock.Anything, id).Return(&models.MealLog{ID: id, UserID: "u", DishName: "Lablabi"}, nil)
	store.On("Get", mock.Anything, mock.Anything).Return(nil, service.ErrNotFound)
	r := newTestRouter(newMealHandler(new(mocks.MockMealPipeline), store))

	w := doRequest(r, http.MethodGet, "/api/v1/meals/"+id.String(), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Lablabi")

	w = doRequest(r, http.MethodGet, "/api/v1/meals/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/meals/123", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMeals(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := new(mocks.MockMealStore)
	store.On("ListByUserAndDay", mock.Anything, "test_user", day).Return(nil, nil)
	r := newTestRouter(newMealHandler(new(mocks.MockMealPipeline), store))

	w := doRequest(r, http.MethodGet, "/api/v1/users/test_user/meals?date=2026-03-01", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"test_user","date":"2026-03-01","meals":[]}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/v1/users/test_user/meals?date=03/01/2026", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertExpectations(t)
}
