package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/pageza/nutrisnap/backend/internal/models"
)

// ProfileUpdate carries the fields a client may change. Nil leaves a field untouched.
type ProfileUpdate struct {
	Username         *string            `json:"username"`
	DailyCalorieGoal *int               `json:"daily_calorie_goal"`
	HealthGoal       *models.HealthGoal `json:"health_goal"`
	HeightCm         *float64           `json:"height_cm"`
	WeightKg         *float64           `json:"weight_kg"`
}

// ProfileService handles user profile operations
type ProfileService struct {
	db          *gorm.DB
	defaultGoal int
}

// Ensure ProfileService implements IProfileService
var _ IProfileService = (*ProfileService)(nil)

// NewProfileService creates a new ProfileService instance
func NewProfileService(db *gorm.DB, defaultGoal int) *ProfileService {
	return &ProfileService{
		db:          db,
		defaultGoal: defaultGoal,
	}
}

// GetProfile retrieves a user's profile
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// UpsertProfile creates the profile on first write and records goal changes.
func (s *ProfileService) UpsertProfile(ctx context.Context, userID string, req *ProfileUpdate) (*models.UserProfile, error) {
	if userID == "" {
		return nil, invalidInput("user_id", "must not be empty")
	}
	if err := validateProfileUpdate(req); err != nil {
		return nil, err
	}

	var profile models.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&profile).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if isNew {
			profile = models.UserProfile{
				UserID:           userID,
				DailyCalorieGoal: s.defaultGoal,
				HealthGoal:       models.GoalMaintain,
			}
		}

		history := applyProfileUpdate(&profile, req)

		if isNew {
			if err := tx.Create(&profile).Error; err != nil {
				return err
			}
		} else if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		if !isNew && len(history) > 0 {
			return tx.Create(&history).Error
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return &profile, nil
}

// GetProfileHistory returns recorded goal changes, newest first.
func (s *ProfileService) GetProfileHistory(ctx context.Context, userID string) ([]models.ProfileHistory, error) {
	var history []models.ProfileHistory
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("changed_at DESC, id DESC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to get profile history: %w", err)
	}
	return history, nil
}

func validateProfileUpdate(req *ProfileUpdate) error {
	if req == nil {
		return invalidInput("profile", "request body required")
	}
	if req.DailyCalorieGoal != nil && *req.DailyCalorieGoal <= 0 {
		return invalidInput("daily_calorie_goal", "must be positive")
	}
	if req.HealthGoal != nil && !req.HealthGoal.Valid() {
		return invalidInput("health_goal", fmt.Sprintf("unknown goal %q", *req.HealthGoal))
	}
	if req.HeightCm != nil && *req.HeightCm <= 0 {
		return invalidInput("height_cm", "must be positive")
	}
	if req.WeightKg != nil && *req.WeightKg <= 0 {
		return invalidInput("weight_kg", "must be positive")
	}
	return nil
}

// applyProfileUpdate mutates p and returns history rows for changed goals.
func applyProfileUpdate(p *models.UserProfile, req *ProfileUpdate) []models.ProfileHistory {
	var history []models.ProfileHistory
	now := time.Now().UTC()
	record := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			history = append(history, models.ProfileHistory{
				UserID:    p.UserID,
				Field:     field,
				OldValue:  oldValue,
				NewValue:  newValue,
				ChangedAt: now,
			})
		}
	}

	if req.Username != nil {
		p.Username = *req.Username
	}
	if req.DailyCalorieGoal != nil {
		record("daily_calorie_goal", strconv.Itoa(p.DailyCalorieGoal), strconv.Itoa(*req.DailyCalorieGoal))
		p.DailyCalorieGoal = *req.DailyCalorieGoal
	}
	if req.HealthGoal != nil {
		record("health_goal", string(p.HealthGoal), string(*req.HealthGoal))
		p.HealthGoal = *req.HealthGoal
	}
	if req.HeightCm != nil {
		p.HeightCm = req.HeightCm
	}
	if req.WeightKg != nil {
		p.WeightKg = req.WeightKg
	}
	return history
}
