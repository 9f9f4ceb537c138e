// Package store is the PostgreSQL implementation of core.Store.
//
// Overlapping usage and sales-order ranges are rejected by exclusion
// constraints in the schema; violations come back as core.ErrConflict.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/model"
)

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	sqlstateExclusionViolation = "23P01"
	sqlstateUniqueViolation    = "23505"
)

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

var _ core.Store = (*Store)(nil)

// conflictOrErr turns constraint violations into core.ErrConflict.
func conflictOrErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateExclusionViolation, sqlstateUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, core.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Store) UpsertTenant(ctx context.Context, info model.TenantInfo) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, description, last_collected)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		 RETURNING id, name, description, last_collected, created_at`,
		info.ID, info.Name, info.Description, model.DawnOfTime,
	).Scan(&t.ID, &t.Name, &t.Description, &t.LastCollected, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert tenant %s: %w", info.ID, err)
	}
	t.LastCollected = t.LastCollected.UTC()
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, last_collected, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.LastCollected, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tenant %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	t.LastCollected = t.LastCollected.UTC()
	return &t, nil
}

// CommitWindow moves the watermark first so a concurrent writer for the
// same window loses before inserting anything.
func (s *Store) CommitWindow(ctx context.Context, c model.WindowCommit) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin window commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE tenants SET last_collected = $3 WHERE id = $1 AND last_collected = $2`,
		c.TenantID, c.Start, c.End,
	)
	if err != nil {
		return fmt.Errorf("advance watermark for %s: %w", c.TenantID, err)
	}
	if tag.RowsAffected() == 0 {
		return &core.ConflictError{TenantID: c.TenantID, Start: c.Start, End: c.End,
			Err: errors.New("watermark moved")}
	}

	for _, r := range c.Resources {
		if _, err := tx.Exec(ctx,
			`INSERT INTO resources (id, tenant_id, type, metadata)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id, tenant_id) DO NOTHING`,
			r.ID, r.TenantID, r.Type, r.Metadata,
		); err != nil {
			return fmt.Errorf("insert resource %s: %w", r.ID, err)
		}
	}

	for _, e := range c.Entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO usage_entries (tenant_id, resource_id, service, volume, unit, start_at, end_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.TenantID, e.ResourceID, e.Service, e.Volume, e.Unit, e.Start, e.End,
		); err != nil {
			return conflictOrErr(fmt.Sprintf("insert usage %s/%s", e.ResourceID, e.Service), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return conflictOrErr("commit window", err)
	}
	return nil
}

func (s *Store) UsageTotals(ctx context.Context, tenantID string, start, end time.Time) ([]model.UsageTotal, error) {
	rows, err := s.db.Query(ctx,
		`SELECT resource_id, service, unit, SUM(volume)
		 FROM usage_entries
		 WHERE tenant_id = $1 AND start_at >= $2 AND end_at <= $3
		 GROUP BY resource_id, service, unit
		 ORDER BY resource_id, service, unit`,
		tenantID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage totals: %w", err)
	}
	defer rows.Close()

	var totals []model.UsageTotal
	for rows.Next() {
		var t model.UsageTotal
		if err := rows.Scan(&t.ResourceID, &t.Service, &t.Unit, &t.Volume); err != nil {
			return nil, fmt.Errorf("scan usage total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage totals: %w", err)
	}
	return totals, nil
}

func (s *Store) ResourcesByID(ctx context.Context, tenantID string, ids []string) (map[string]model.Resource, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, type, metadata, created_at
		 FROM resources WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Resource, len(ids))
	for rows.Next() {
		var r model.Resource
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Type, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func (s *Store) LatestSalesOrderEnd(ctx context.Context, tenantID string) (time.Time, bool, error) {
	var end *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT MAX(end_at) FROM sales_orders WHERE tenant_id = $1`, tenantID,
	).Scan(&end)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest sales order end: %w", err)
	}
	if end == nil {
		return time.Time{}, false, nil
	}
	return end.UTC(), true, nil
}

func (s *Store) InsertSalesOrder(ctx context.Context, order *model.SalesOrder) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO sales_orders (tenant_id, start_at, end_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		order.TenantID, order.Start, order.End,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return conflictOrErr("insert sales order", err)
	}
	return nil
}

func (s *Store) SalesOrderAt(ctx context.Context, tenantID string, at time.Time) (*model.SalesOrder, error) {
	var o model.SalesOrder
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, start_at, end_at, created_at
		 FROM sales_orders
		 WHERE tenant_id = $1 AND start_at <= $2 AND end_at > $2`,
		tenantID, at,
	).Scan(&o.ID, &o.TenantID, &o.Start, &o.End, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get sales order: %w", err)
	}
	o.Start, o.End = o.Start.UTC(), o.End.UTC()
	return &o, nil
}

func (s *Store) SalesOrdersInRange(ctx context.Context, tenantID string, start, end time.Time) ([]model.SalesOrder, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, start_at, end_at, created_at
		 FROM sales_orders
		 WHERE tenant_id = $1 AND tstzrange(start_at, end_at, '[)') && tstzrange($2, $3, '[)')
		 ORDER BY start_at`,
		tenantID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query sales orders: %w", err)
	}
	defer rows.Close()

	var orders []model.SalesOrder
	for rows.Next() {
		var o model.SalesOrder
		if err := rows.Scan(&o.ID, &o.TenantID, &o.Start, &o.End, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sales order: %w", err)
		}
		o.Start, o.End = o.Start.UTC(), o.End.UTC()
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales orders: %w", err)
	}
	return orders, nil
}

// GetLastRun returns the dawn of time until a sweep has committed.
func (s *Store) GetLastRun(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRow(ctx, `SELECT last_run FROM last_run`).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DawnOfTime, nil
		}
		return time.Time{}, fmt.Errorf("get last run: %w", err)
	}
	return t.UTC(), nil
}

func (s *Store) SetLastRun(ctx context.Context, t time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO last_run (id, last_run) VALUES (TRUE, $1)
		 ON CONFLICT (id) DO UPDATE SET last_run = EXCLUDED.last_run`, t,
	)
	if err != nil {
		return fmt.Errorf("set last run: %w", err)
	}
	return nil
}
