package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// MockMealPipeline is a mock implementation of service.IMealPipeline
type MockMealPipeline struct {
	mock.Mock
}

var _ service.IMealPipeline = (*MockMealPipeline)(nil)

func (m *MockMealPipeline) Analyze(ctx context.Context, image []byte) (*service.AnalysisResult, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalysisResult), args.Error(1)
}

func (m *MockMealPipeline) LogMeal(ctx context.Context, req service.LogMealRequest) (*models.MealLog, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MealLog), args.Error(1)
}

// MockDashboardService is a mock implementation of service.IDashboardService
type MockDashboardService struct {
	mock.Mock
}

var _ service.IDashboardService = (*MockDashboardService)(nil)

func (m *MockDashboardService) Summary(ctx context.Context, userID string) (*service.DailySummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DailySummary), args.Error(1)
}
