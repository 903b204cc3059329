package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pageza/nutrisnap/backend/internal/middleware"
	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// multipart framing allowance on top of the image itself
const multipartOverhead = 1 << 20

// MealHandler serves the analyze and log phases plus meal lookups.
type MealHandler struct {
	pipeline    service.IMealPipeline
	store       service.MealStore
	maxBytes    int64
	location    *time.Location
	rateLimiter *middleware.RateLimiter
}

// NewMealHandler creates a new meal handler. rateLimiter may be nil.
func NewMealHandler(pipeline service.IMealPipeline, store service.MealStore, maxBytes int64, loc *time.Location, rateLimiter *middleware.RateLimiter) *MealHandler {
	if maxBytes <= 0 {
		maxBytes = service.DefaultMaxImageBytes
	}
	if loc == nil {
		loc = time.Local
	}
	return &MealHandler{
		pipeline:    pipeline,
		store:       store,
		maxBytes:    maxBytes,
		location:    loc,
		rateLimiter: rateLimiter,
	}
}

// RegisterRoutes registers the meal routes
func (h *MealHandler) RegisterRoutes(router *gin.RouterGroup) {
	limit := h.rateLimiter.RateLimitMiddleware()

	router.POST("/analyze", limit, h.Analyze)
	router.POST("/meals", limit, h.LogMeal)
	router.GET("/meals/:id", h.GetMeal)
	router.GET("/users/:user_id/meals", h.ListMeals)
}

// Analyze handles POST /analyze with a multipart "image" field.
func (h *MealHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "image", Reason: "multipart field is missing or unreadable"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "image", Reason: "could not open upload"})
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the size check to reject it.
	image, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "image", Reason: "could not read upload"})
		return
	}

	result, err := h.pipeline.Analyze(c.Request.Context(), image)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// LogMealRequest is the verified meal sent by the client.
type LogMealRequest struct {
	UserID         string `json:"user_id"`
	VerifiedText   string `json:"verified_text"`
	ImageReference string `json:"image_reference,omitempty"`
	MealID         string `json:"meal_id,omitempty"`
}

// LogMeal handles POST /meals.
func (h *MealHandler) LogMeal(c *gin.Context) {
	var req LogMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "body", Reason: "invalid request body"})
		return
	}

	var mealID uuid.UUID
	if id := strings.TrimSpace(req.MealID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			_ = c.Error(&service.InvalidInputError{Field: "meal_id", Reason: "must be a UUID"})
			return
		}
		mealID = parsed
	}

	meal, err := h.pipeline.LogMeal(c.Request.Context(), service.LogMealRequest{
		UserID:         req.UserID,
		VerifiedText:   req.VerifiedText,
		ImageReference: req.ImageReference,
		MealID:         mealID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, meal)
}

// GetMeal handles GET /meals/:id.
func (h *MealHandler) GetMeal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "id", Reason: "must be a UUID"})
		return
	}

	meal, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

// ListMeals handles GET /users/:user_id/meals?date=YYYY-MM-DD. The date
// defaults to today in the configured timezone.
func (h *MealHandler) ListMeals(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		_ = c.Error(&service.InvalidInputError{Field: "user_id", Reason: "must not be empty"})
		return
	}

	day := time.Now().In(h.location)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.location)
		if err != nil {
			_ = c.Error(&service.InvalidInputError{Field: "date", Reason: "must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	meals, err := h.store.ListByUserAndDay(c.Request.Context(), userID, day)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if meals == nil {
		meals = []models.MealLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"date":    day.Format("2006-01-02"),
		"meals":   meals,
	})
}
