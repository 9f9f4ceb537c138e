package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/metering/internal/metrics"
	"github.com/edvin/metering/internal/model"
)

// Pricer fills in the costs of a statement.
type Pricer interface {
	Price(st *model.Statement)
}

// SalesOrderService turns stored usage into billing statements. Committed
// sales orders claim their range before the statement is built, so a range
// is never billed twice.
type SalesOrderService struct {
	store    Store
	pricer   Pricer
	archiver Archiver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSalesOrderService creates the service. archiver may be nil.
func NewSalesOrderService(store Store, pricer Pricer, archiver Archiver, logger zerolog.Logger) *SalesOrderService {
	return &SalesOrderService{
		store:    store,
		pricer:   pricer,
		archiver: archiver,
		logger:   logger.With().Str("component", "sales_order").Logger(),
		now:      time.Now,
	}
}

// Generate bills the tenant from the end of its last sales order (or the
// dawn of time) up to end. Unless draft, the range is recorded as a sales
// order first; a range that overlaps an existing order is a conflict.
func (s *SalesOrderService) Generate(ctx context.Context, tenantID string, end time.Time, draft bool) (*model.Statement, error) {
	mode := "committed"
	if draft {
		mode = "draft"
	}

	tenant, err := getTenant(ctx, s.store, tenantID)
	if err != nil {
		return nil, err
	}

	start := model.DawnOfTime
	last, ok, err := s.store.LatestSalesOrderEnd(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("latest sales order for %s: %w", tenant.ID, err)
	}
	if ok {
		start = last
	}

	if !end.After(start) {
		return nil, validationErrorf("end date must be greater than the end of the last sales order range")
	}
	if end.After(s.now()) {
		return nil, validationErrorf("end date cannot be a future date")
	}

	var order *model.SalesOrder
	if !draft {
		order = &model.SalesOrder{TenantID: tenant.ID, Start: start, End: end}
		if err := s.store.InsertSalesOrder(ctx, order); err != nil {
			if errors.Is(err, ErrConflict) {
				s.logger.Warn().Str("tenant_id", tenant.ID).
					Time("start", start).Time("end", end).
					Msg("sales order overlaps an existing one")
				metrics.SalesOrders.WithLabelValues(mode, "conflict").Inc()
				return nil, &ConflictError{TenantID: tenant.ID, Start: start, End: end, Err: err}
			}
			return nil, fmt.Errorf("insert sales order for %s: %w", tenant.ID, err)
		}
	}

	st, err := s.priced(ctx, tenant, start, end)
	if err != nil {
		return nil, err
	}

	if order != nil {
		s.logger.Info().Int64("sales_order_id", order.ID).Str("tenant_id", tenant.ID).
			Time("start", start).Time("end", end).
			Msg("sales order generated")
		s.archive(ctx, order, st)
	}
	metrics.SalesOrders.WithLabelValues(mode, "ok").Inc()
	return st, nil
}

// Regenerate rebuilds, without writing anything, the statement of the
// committed sales order whose range contains target.
func (s *SalesOrderService) Regenerate(ctx context.Context, tenantID string, target time.Time) (*model.Statement, error) {
	tenant, err := getTenant(ctx, s.store, tenantID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.SalesOrderAt(ctx, tenant.ID, target)
	if err != nil {
		if isNotFound(err) {
			return nil, validationErrorf("given date not in existing sales orders")
		}
		return nil, fmt.Errorf("sales order at %s: %w", target.Format(time.RFC3339), err)
	}

	return s.priced(ctx, tenant, order.Start, order.End)
}

// RegenerateRange rebuilds the statements of every committed sales order
// intersecting [start, end), ordered by start.
func (s *SalesOrderService) RegenerateRange(ctx context.Context, tenantID string, start, end time.Time) ([]*model.Statement, error) {
	if end.Before(start) {
		return nil, validationErrorf("end must be after start")
	}
	tenant, err := getTenant(ctx, s.store, tenantID)
	if err != nil {
		return nil, err
	}

	orders, err := s.store.SalesOrdersInRange(ctx, tenant.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sales orders for %s: %w", tenant.ID, err)
	}

	out := make([]*model.Statement, 0, len(orders))
	for _, o := range orders {
		st, err := s.priced(ctx, tenant, o.Start, o.End)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *SalesOrderService) priced(ctx context.Context, tenant *model.Tenant, start, end time.Time) (*model.Statement, error) {
	st, err := buildStatement(ctx, s.store, tenant, start, end)
	if err != nil {
		return nil, err
	}
	s.pricer.Price(st)
	return st, nil
}

// archive stores a copy of a committed statement. The order is already
// recorded, so a failed archive is logged and not returned.
func (s *SalesOrderService) archive(ctx context.Context, order *model.SalesOrder, st *model.Statement) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, order, st); err != nil {
		s.logger.Error().Err(err).Int64("sales_order_id", order.ID).Msg("archive sales order")
	}
}
