package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/nutrisnap/backend/internal/models"
)

// MealStore persists meal logs. Insert fails with ErrDuplicateID when the id exists.
type MealStore interface {
	Insert(ctx context.Context, meal *models.MealLog) error
	Get(ctx context.Context, id uuid.UUID) (*models.MealLog, error)
	ListByUserAndDay(ctx context.Context, userID string, day time.Time) ([]models.MealLog, error)
}

// IProfileService defines the interface for user profile operations
type IProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpsertProfile(ctx context.Context, userID string, req *ProfileUpdate) (*models.UserProfile, error)
	GetProfileHistory(ctx context.Context, userID string) ([]models.ProfileHistory, error)
}

// ImageArchive keeps a copy of an uploaded image and returns a reference to it.
type ImageArchive interface {
	Store(ctx context.Context, image []byte, contentType string) (string, error)
}

// IMealPipeline is the two-phase meal flow served over HTTP.
type IMealPipeline interface {
	Analyze(ctx context.Context, image []byte) (*AnalysisResult, error)
	LogMeal(ctx context.Context, req LogMealRequest) (*models.MealLog, error)
}

type IDashboardService interface {
	Summary(ctx context.Context, userID string) (*DailySummary, error)
}

var (
	_ IMealPipeline     = (*Council)(nil)
	_ IDashboardService = (*DashboardService)(nil)
)
