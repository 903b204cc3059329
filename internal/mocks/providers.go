package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/nutrisnap/backend/internal/models"
	"github.com/pageza/nutrisnap/backend/internal/service"
)

// MockVisionClient is a mock implementation of service.VisionClient
type MockVisionClient struct {
	mock.Mock
}

func (m *MockVisionClient) Detect(ctx context.Context, image []byte) (service.DetectionResult, error) {
	args := m.Called(ctx, image)
	return args.Get(0).(service.DetectionResult), args.Error(1)
}

// MockNutritionClient is a mock implementation of service.NutritionClient
type MockNutritionClient struct {
	mock.Mock
}

func (m *MockNutritionClient) Quantify(ctx context.Context, verifiedText string) ([]models.NutritionItem, error) {
	args := m.Called(ctx, verifiedText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NutritionItem), args.Error(1)
}

// MockAdvisoryClient is a mock implementation of service.AdvisoryClient
type MockAdvisoryClient struct {
	mock.Mock
}

func (m *MockAdvisoryClient) Advise(ctx context.Context, totals models.NutritionTotals, adviceCtx service.AdviceContext) string {
	args := m.Called(ctx, totals, adviceCtx)
	return args.String(0)
}

// MockImageArchive is a mock implementation of service.ImageArchive
type MockImageArchive struct {
	mock.Mock
}

func (m *MockImageArchive) Store(ctx context.Context, image []byte, contentType string) (string, error) {
	args := m.Called(ctx, image, contentType)
	return args.String(0), args.Error(1)
}
