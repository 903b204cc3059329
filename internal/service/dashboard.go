package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pageza/nutrisnap/backend/internal/models"
)

// DailySummary is the derived view of one user's day.
type DailySummary struct {
	UserID          string                 `json:"user_id"`
	Date            string                 `json:"date"`
	DailyGoal       float64                `json:"daily_goal"`
	TotalConsumed   float64                `json:"total_consumed"`
	Remaining       float64                `json:"remaining"`
	MealsToday      int                    `json:"meals_today"`
	NutritionTotals models.NutritionTotals `json:"nutrition_totals"`
}

// DashboardService folds a day's meals against the user's calorie goal.
type DashboardService struct {
	meals       MealStore
	profiles    IProfileService
	defaultGoal int
	location    *time.Location
	now         func() time.Time
}

func NewDashboardService(meals MealStore, profiles IProfileService, defaultGoal int, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{
		meals:       meals,
		profiles:    profiles,
		defaultGoal: defaultGoal,
		location:    loc,
		now:         time.Now,
	}
}

// Summary reports today's totals. Remaining goes negative once the goal is exceeded.
func (s *DashboardService) Summary(ctx context.Context, userID string) (*DailySummary, error) {
	return s.SummaryFor(ctx, userID, s.now().In(s.location))
}

// SummaryFor reports the totals for the calendar day containing day.
func (s *DashboardService) SummaryFor(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	if userID == "" {
		return nil, invalidInput("user_id", "must not be empty")
	}

	var (
		goal  = s.defaultGoal
		meals []models.MealLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := s.profiles.GetProfile(gctx, userID)
		switch {
		case err == nil:
			if profile.DailyCalorieGoal > 0 {
				goal = profile.DailyCalorieGoal
			}
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if meals, err = s.meals.ListByUserAndDay(gctx, userID, day); err != nil {
			return fmt.Errorf("failed to load meals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := Total(meals)
	return &DailySummary{
		UserID:          userID,
		Date:            day.Format("2006-01-02"),
		DailyGoal:       float64(goal),
		TotalConsumed:   totals.Calories,
		Remaining:       float64(goal) - totals.Calories,
		MealsToday:      len(meals),
		NutritionTotals: totals,
	}, nil
}
