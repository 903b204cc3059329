package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

type ProfileHandler struct {
	profileService service.IProfileService
}

func NewProfileHandler(profileService service.IProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func (h *ProfileHandler) RegisterRoutes(router *gin.RouterGroup) {
	profile := router.Group("/users/:user_id/profile")
	{
		profile.GET("", h.GetProfile)
		profile.PUT("", h.UpdateProfile)
		profile.GET("/history", h.GetProfileHistory)
	}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.profileService.GetProfile(c.Request.Context(), strings.TrimSpace(c.Param("user_id")))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req service.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(&service.InvalidInputError{Field: "body", Reason: "invalid request body"})
		return
	}

	profile, err := h.profileService.UpsertProfile(c.Request.Context(), strings.TrimSpace(c.Param("user_id")), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetProfileHistory(c *gin.Context) {
	history, err := h.profileService.GetProfileHistory(c.Request.Context(), strings.TrimSpace(c.Param("user_id")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if history == nil {
		history = []models.ProfileHistory{}
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}
