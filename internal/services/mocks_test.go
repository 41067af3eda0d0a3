package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/axellelanca/acortador/internal/models"
)

type MockURLRepository struct {
	mock.Mock
}

func (r *MockURLRepository) CreateMapping(ctx context.Context, mapping *models.URLMapping) error {
	args := r.Called(ctx, mapping)
	return args.Error(0)
}

func (r *MockURLRepository) FindByShortCode(ctx context.Context, shortCode string) (*models.URLMapping, error) {
	args := r.Called(ctx, shortCode)
	mapping, _ := args.Get(0).(*models.URLMapping)
	return mapping, args.Error(1)
}

func (r *MockURLRepository) FindByLongURL(ctx context.Context, longURL string) (*models.URLMapping, error) {
	args := r.Called(ctx, longURL)
	mapping, _ := args.Get(0).(*models.URLMapping)
	return mapping, args.Error(1)
}

type MockRateLimitRepository struct {
	mock.Mock
}

func (r *MockRateLimitRepository) CreateRecord(ctx context.Context, record *models.RateLimitRecord) error {
	args := r.Called(ctx, record)
	return args.Error(0)
}

func (r *MockRateLimitRepository) CountSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	args := r.Called(ctx, ip, since)
	return args.Get(0).(int64), args.Error(1)
}

func (r *MockRateLimitRepository) AcquireSlot(ctx context.Context, ip string, since time.Time, limit int64, now time.Time) (bool, error) {
	args := r.Called(ctx, ip, since, limit, now)
	return args.Bool(0), args.Error(1)
}

func (r *MockRateLimitRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := r.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (r *MockRateLimitRepository) ReleaseSlot(ctx context.Context, ip string) error {
	args := r.Called(ctx, ip)
	return args.Error(0)
}
