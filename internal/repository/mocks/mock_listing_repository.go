package mocks

import (
	"context"

	"classificados/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Load(ctx context.Context) ([]model.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Listing), args.Error(1)
}

func (m *MockListingRepository) Save(ctx context.Context, listings []model.Listing) error {
	args := m.Called(ctx, listings)
	return args.Error(0)
}

// MockPingingRepository is a MockListingRepository that also reports connectivity.
type MockPingingRepository struct {
	MockListingRepository
}

func (m *MockPingingRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
