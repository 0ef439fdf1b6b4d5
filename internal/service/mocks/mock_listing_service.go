package mocks

import (
	"context"
	"io"

	"classificados/internal/model"
	"classificados/internal/query"
	"classificados/internal/service"
	"classificados/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) List(ctx context.Context) []model.Listing {
	args := m.Called(ctx)
	return args.Get(0).([]model.Listing)
}

func (m *MockListingService) Search(ctx context.Context, c query.Criteria) []model.Listing {
	args := m.Called(ctx, c)
	return args.Get(0).([]model.Listing)
}

func (m *MockListingService) Get(ctx context.Context, id string) (model.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Listing), args.Error(1)
}

func (m *MockListingService) Create(ctx context.Context, d service.Draft, uploads []service.Upload) (model.Listing, error) {
	args := m.Called(ctx, d, uploads)
	return args.Get(0).(model.Listing), args.Error(1)
}

func (m *MockListingService) MarkSold(ctx context.Context, id string) (model.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Listing), args.Error(1)
}

func (m *MockListingService) OpenAttachment(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, key)
	var rc io.ReadCloser
	if v := args.Get(0); v != nil {
		rc = v.(io.ReadCloser)
	}
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}
