//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/db"
	"github.com/edvin/metering/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("metering_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(sqlDB))
	require.NoError(t, sqlDB.Close())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return New(pool)
}

func usageCommit(tenantID string, start time.Time, resources ...model.Resource) model.WindowCommit {
	return model.WindowCommit{
		TenantID:  tenantID,
		Start:     start,
		End:       start.Add(time.Hour),
		Resources: resources,
		Entries: []model.UsageEntry{{
			TenantID: tenantID, ResourceID: "vm-1", Service: "m1.small",
			Volume: decimal.RequireFromString("3600.5"), Unit: "second",
			Start: start, End: start.Add(time.Hour),
		}},
	}
}

func TestIntegration_CommitWindowAndTotals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.UpsertTenant(ctx, model.TenantInfo{ID: "t1", Name: "acme"})
	require.NoError(t, err)
	require.Equal(t, model.DawnOfTime, tenant.LastCollected)

	vm := model.Resource{ID: "vm-1", TenantID: "t1", Type: "Virtual Machine", Metadata: map[string]any{"name": "web"}}
	w0 := model.DawnOfTime
	require.NoError(t, s.CommitWindow(ctx, usageCommit("t1", w0, vm)))

	renamed := vm
	renamed.Metadata = map[string]any{"name": "renamed"}
	require.NoError(t, s.CommitWindow(ctx, usageCommit("t1", w0.Add(time.Hour), renamed)))

	tenant, err = s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, w0.Add(2*time.Hour), tenant.LastCollected)

	totals, err := s.UsageTotals(ctx, "t1", w0, w0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "7201", totals[0].Volume.String())

	resources, err := s.ResourcesByID(ctx, "t1", []string{"vm-1"})
	require.NoError(t, err)
	assert.Equal(t, "web", resources["vm-1"].Metadata["name"])
}

func TestIntegration_StaleWatermarkIsConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertTenant(ctx, model.TenantInfo{ID: "t1"})
	require.NoError(t, err)
	vm := model.Resource{ID: "vm-1", TenantID: "t1", Type: "Virtual Machine"}
	require.NoError(t, s.CommitWindow(ctx, usageCommit("t1", model.DawnOfTime, vm)))

	err = s.CommitWindow(ctx, usageCommit("t1", model.DawnOfTime, vm))
	require.ErrorIs(t, err, core.ErrConflict)

	totals, err := s.UsageTotals(ctx, "t1", model.DawnOfTime, model.DawnOfTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "3600.5", totals[0].Volume.String())
}

func TestIntegration_SalesOrdersNeverOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertTenant(ctx, model.TenantInfo{ID: "t1"})
	require.NoError(t, err)

	day := 24 * time.Hour
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	first := &model.SalesOrder{TenantID: "t1", Start: start, End: start.Add(day)}
	require.NoError(t, s.InsertSalesOrder(ctx, first))
	require.NotZero(t, first.ID)

	second := &model.SalesOrder{TenantID: "t1", Start: start.Add(day), End: start.Add(2 * day)}
	require.NoError(t, s.InsertSalesOrder(ctx, second), "adjacent half-open ranges do not overlap")

	overlapping := &model.SalesOrder{TenantID: "t1", Start: start.Add(12 * time.Hour), End: start.Add(3 * day)}
	require.ErrorIs(t, s.InsertSalesOrder(ctx, overlapping), core.ErrConflict)

	end, ok, err := s.LatestSalesOrderEnd(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, start.Add(2*day), end)

	at, err := s.SalesOrderAt(ctx, "t1", start.Add(day))
	require.NoError(t, err)
	assert.Equal(t, second.ID, at.ID)

	orders, err := s.SalesOrdersInRange(ctx, "t1", start.Add(time.Hour), start.Add(36*time.Hour))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first.ID, orders[0].ID)
}

func TestIntegration_LastRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetLastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DawnOfTime, got)

	ts := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetLastRun(ctx, ts))
	require.NoError(t, s.SetLastRun(ctx, ts.Add(time.Hour)))

	got, err = s.GetLastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, ts.Add(time.Hour), got)
}
