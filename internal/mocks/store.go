package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// MockMealStore is a mock implementation of service.MealStore
type MockMealStore struct {
	mock.Mock
}

var _ service.MealStore = (*MockMealStore)(nil)

func (m *MockMealStore) Insert(ctx context.Context, meal *models.MealLog) error {
	args := m.Called(ctx, meal)
	return args.Error(0)
}

func (m *MockMealStore) Get(ctx context.Context, id uuid.UUID) (*models.MealLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MealLog), args.Error(1)
}

func (m *MockMealStore) ListByUserAndDay(ctx context.Context, userID string, day time.Time) ([]models.MealLog, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MealLog), args.Error(1)
}
