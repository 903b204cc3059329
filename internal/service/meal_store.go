package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/nutrisnap/backend/internal/models"
)

// GormMealStore is the gorm-backed MealStore.
type GormMealStore struct {
	db *gorm.DB
}

var _ MealStore = (*GormMealStore)(nil)

func NewGormMealStore(db *gorm.DB) *GormMealStore {
	return &GormMealStore{db: db}
}

// Insert writes a new meal log. Existing ids are never overwritten.
func (s *GormMealStore) Insert(ctx context.Context, meal *models.MealLog) error {
	if meal.ID == uuid.Nil {
		return invalidInput("meal_id", "must be set before insert")
	}
	meal.Timestamp = meal.Timestamp.UTC()

	// The primary key decides; a row written by a concurrent caller makes
	// this insert a no-op rather than an error.
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(meal)
	err := result.Error
	if err == nil && result.RowsAffected == 0 {
		err = ErrDuplicateID
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicateID), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("meal %s: %w", meal.ID, ErrDuplicateID)
	default:
		return fmt.Errorf("failed to insert meal: %w", err)
	}
}

func (s *GormMealStore) Get(ctx context.Context, id uuid.UUID) (*models.MealLog, error) {
	var meal models.MealLog
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&meal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("meal %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	return &meal, nil
}

// ListByUserAndDay returns the user's meals on the calendar day of day,
// in day's location, oldest first.
func (s *GormMealStore) ListByUserAndDay(ctx context.Context, userID string, day time.Time) ([]models.MealLog, error) {
	start, end := DayBounds(day)

	var meals []models.MealLog
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND logged_at >= ? AND logged_at < ?", userID, start.UTC(), end.UTC()).
		Order("logged_at ASC").
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return meals, nil
}

// DayBounds returns [midnight, next midnight) of t's day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
