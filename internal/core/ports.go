package core

import (
	"context"
	"time"

	"github.com/edvin/metering/internal/model"
)

// Store persists tenants, usage and sales orders. Implementations enforce
// that usage ranges of one tenant/resource/service and sales-order ranges of
// one tenant never overlap, reporting violations as ErrConflict.
type Store interface {
	// UpsertTenant creates the tenant with the watermark at
	// model.DawnOfTime, or refreshes its name and description.
	UpsertTenant(ctx context.Context, info model.TenantInfo) (*model.Tenant, error)
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)

	// CommitWindow writes the staged resources and usage of one window and
	// moves the tenant watermark from c.Start to c.End, all or nothing. A
	// watermark that is no longer c.Start is a conflict.
	CommitWindow(ctx context.Context, c model.WindowCommit) error

	UsageTotals(ctx context.Context, tenantID string, start, end time.Time) ([]model.UsageTotal, error)
	ResourcesByID(ctx context.Context, tenantID string, ids []string) (map[string]model.Resource, error)

	// LatestSalesOrderEnd returns the end of the tenant's last sales order;
	// ok is false when the tenant has none.
	LatestSalesOrderEnd(ctx context.Context, tenantID string) (end time.Time, ok bool, err error)
	InsertSalesOrder(ctx context.Context, order *model.SalesOrder) error
	SalesOrderAt(ctx context.Context, tenantID string, at time.Time) (*model.SalesOrder, error)
	SalesOrdersInRange(ctx context.Context, tenantID string, start, end time.Time) ([]model.SalesOrder, error)

	GetLastRun(ctx context.Context) (time.Time, error)
	SetLastRun(ctx context.Context, t time.Time) error
}

// Source lists tenants and returns their metered samples.
type Source interface {
	Tenants(ctx context.Context) ([]model.TenantInfo, error)
	// Usage returns the samples of meter for the tenant with
	// start <= timestamp < end, ordered by timestamp.
	Usage(ctx context.Context, tenantID, meter string, start, end time.Time) ([]model.Sample, error)
}

// Locker hands out an exclusive, expiring lock. ok is false when someone
// else holds it.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(context.Context) error, ok bool, err error)
}

// Archiver keeps a copy of each committed sales-order statement.
type Archiver interface {
	Archive(ctx context.Context, order *model.SalesOrder, st *model.Statement) error
}
