package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/model"
)

type mockCollector struct {
	mock.Mock
}

func (m *mockCollector) Sweep(ctx context.Context, now time.Time) (*core.SweepResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.SweepResult), args.Error(1)
}

func (m *mockCollector) LastCollected(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

type mockUsage struct {
	mock.Mock
}

func (m *mockUsage) Usage(ctx context.Context, tenantID string, start, end time.Time) (*model.Statement, error) {
	args := m.Called(ctx, tenantID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Statement), args.Error(1)
}

type mockSalesOrders struct {
	mock.Mock
}

func (m *mockSalesOrders) Generate(ctx context.Context, tenantID string, end time.Time, draft bool) (*model.Statement, error) {
	args := m.Called(ctx, tenantID, end, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Statement), args.Error(1)
}

func (m *mockSalesOrders) Regenerate(ctx context.Context, tenantID string, target time.Time) (*model.Statement, error) {
	args := m.Called(ctx, tenantID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Statement), args.Error(1)
}

func (m *mockSalesOrders) RegenerateRange(ctx context.Context, tenantID string, start, end time.Time) ([]*model.Statement, error) {
	args := m.Called(ctx, tenantID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Statement), args.Error(1)
}
