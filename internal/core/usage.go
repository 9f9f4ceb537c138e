package core

import (
	"context"
	"time"

	"github.com/edvin/metering/internal/model"
)

type UsageService struct {
	store Store
}

func NewUsageService(store Store) *UsageService {
	return &UsageService{store: store}
}

// Usage returns the tenant's raw aggregated usage in [start, end): volumes
// summed per resource and service, with no rates, unit conversion or
// rounding applied.
func (s *UsageService) Usage(ctx context.Context, tenantID string, start, end time.Time) (*model.Statement, error) {
	if end.Before(start) {
		return nil, validationErrorf("end must be after start")
	}
	tenant, err := getTenant(ctx, s.store, tenantID)
	if err != nil {
		return nil, err
	}
	return buildStatement(ctx, s.store, tenant, start, end)
}
