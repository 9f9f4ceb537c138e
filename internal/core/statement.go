package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/metering/internal/model"
)

// buildStatement aggregates the tenant's stored usage in [start, end) into
// an unpriced statement, one entry per resource.
func buildStatement(ctx context.Context, store Store, tenant *model.Tenant, start, end time.Time) (*model.Statement, error) {
	totals, err := store.UsageTotals(ctx, tenant.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("usage totals for %s: %w", tenant.ID, err)
	}

	ids := make([]string, 0, len(totals))
	seen := map[string]bool{}
	for _, t := range totals {
		if !seen[t.ResourceID] {
			seen[t.ResourceID] = true
			ids = append(ids, t.ResourceID)
		}
	}

	resources := map[string]model.Resource{}
	if len(ids) > 0 {
		resources, err = store.ResourcesByID(ctx, tenant.ID, ids)
		if err != nil {
			return nil, fmt.Errorf("resources for %s: %w", tenant.ID, err)
		}
	}

	st := &model.Statement{
		TenantID:  tenant.ID,
		Name:      tenant.Name,
		Resources: make(map[string]*model.StatementResource, len(ids)),
		Start:     start.UTC().Format(model.ISOTime),
		End:       end.UTC().Format(model.ISOTime),
	}
	for _, t := range totals {
		res, ok := st.Resources[t.ResourceID]
		if !ok {
			r := resources[t.ResourceID]
			res = &model.StatementResource{Type: r.Type, Metadata: r.Metadata}
			st.Resources[t.ResourceID] = res
		}
		res.Services = append(res.Services, &model.StatementService{
			Name:   t.Service,
			Volume: t.Volume,
			Unit:   t.Unit,
		})
	}
	return st, nil
}

func getTenant(ctx context.Context, store Store, id string) (*model.Tenant, error) {
	if id == "" {
		return nil, validationErrorf("tenant is required")
	}
	tenant, err := store.GetTenant(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, validationErrorf("tenant %s not found", id)
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return tenant, nil
}
