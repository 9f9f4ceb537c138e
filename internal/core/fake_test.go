package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

// ---------- In-memory store ----------

// memStore is a Store that enforces the same overlap and watermark rules as
// the database.
type memStore struct {
	mu          sync.Mutex
	tenants     map[string]*model.Tenant
	resources   map[string]model.Resource
	entries     []model.UsageEntry
	orders      []model.SalesOrder
	lastRun     *time.Time
	nextOrderID int64

	// commitErr, when set, fails CommitWindow for that window start.
	commitErr map[time.Time]error
	commits   int
}

func newMemStore() *memStore {
	return &memStore{
		tenants:   map[string]*model.Tenant{},
		resources: map[string]model.Resource{},
		commitErr: map[time.Time]error{},
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (m *memStore) UpsertTenant(_ context.Context, info model.TenantInfo) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[info.ID]
	if !ok {
		t = &model.Tenant{ID: info.ID, LastCollected: model.DawnOfTime}
		m.tenants[info.ID] = t
	}
	t.Name = info.Name
	t.Description = info.Description
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTenant(_ context.Context, id string) (*model.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) CommitWindow(_ context.Context, c model.WindowCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.commitErr[c.Start]; err != nil {
		return err
	}
	t, ok := m.tenants[c.TenantID]
	if !ok || !t.LastCollected.Equal(c.Start) {
		return ErrConflict
	}
	for _, e := range c.Entries {
		for _, existing := range m.entries {
			if existing.TenantID == e.TenantID && existing.ResourceID == e.ResourceID &&
				existing.Service == e.Service && overlaps(existing.Start, existing.End, e.Start, e.End) {
				return ErrConflict
			}
		}
	}
	for _, r := range c.Resources {
		key := r.TenantID + "/" + r.ID
		if _, exists := m.resources[key]; !exists {
			m.resources[key] = r
		}
	}
	m.entries = append(m.entries, c.Entries...)
	t.LastCollected = c.End
	m.commits++
	return nil
}

func (m *memStore) UsageTotals(_ context.Context, tenantID string, start, end time.Time) ([]model.UsageTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct{ res, svc, unit string }
	sums := map[key]decimal.Decimal{}
	for _, e := range m.entries {
		if e.TenantID != tenantID || e.Start.Before(start) || e.End.After(end) {
			continue
		}
		k := key{e.ResourceID, e.Service, e.Unit}
		sums[k] = sums[k].Add(e.Volume)
	}
	out := make([]model.UsageTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, model.UsageTotal{ResourceID: k.res, Service: k.svc, Unit: k.unit, Volume: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceID != out[j].ResourceID {
			return out[i].ResourceID < out[j].ResourceID
		}
		return out[i].Service < out[j].Service
	})
	return out, nil
}

func (m *memStore) ResourcesByID(_ context.Context, tenantID string, ids []string) (map[string]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]model.Resource{}
	for _, id := range ids {
		if r, ok := m.resources[tenantID+"/"+id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (m *memStore) LatestSalesOrderEnd(_ context.Context, tenantID string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	found := false
	for _, o := range m.orders {
		if o.TenantID == tenantID && (!found || o.End.After(latest)) {
			latest, found = o.End, true
		}
	}
	return latest, found, nil
}

func (m *memStore) InsertSalesOrder(_ context.Context, order *model.SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TenantID == order.TenantID && overlaps(o.Start, o.End, order.Start, order.End) {
			return ErrConflict
		}
	}
	m.nextOrderID++
	order.ID = m.nextOrderID
	m.orders = append(m.orders, *order)
	return nil
}

func (m *memStore) SalesOrderAt(_ context.Context, tenantID string, at time.Time) (*model.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TenantID == tenantID && !at.Before(o.Start) && at.Before(o.End) {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) SalesOrdersInRange(_ context.Context, tenantID string, start, end time.Time) ([]model.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SalesOrder
	for _, o := range m.orders {
		if o.TenantID == tenantID && overlaps(o.Start, o.End, start, end) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memStore) GetLastRun(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRun == nil {
		return model.DawnOfTime, nil
	}
	return *m.lastRun, nil
}

func (m *memStore) SetLastRun(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRun = &t
	return nil
}

// ---------- Fake metering source ----------

type fakeSource struct {
	mu      sync.Mutex
	tenants []model.TenantInfo
	// samples by tenant and upstream meter.
	samples map[string]map[string][]model.Sample
	// failAt, when set, fails Usage for windows starting at or after it.
	failAt    time.Time
	tenantErr error
	calls     []string
}

func newFakeSource(tenants ...string) *fakeSource {
	f := &fakeSource{samples: map[string]map[string][]model.Sample{}}
	for _, id := range tenants {
		f.tenants = append(f.tenants, model.TenantInfo{ID: id, Name: "tenant " + id})
	}
	return f
}

func (f *fakeSource) add(tenantID, meter string, samples ...model.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samples[tenantID] == nil {
		f.samples[tenantID] = map[string][]model.Sample{}
	}
	f.samples[tenantID][meter] = append(f.samples[tenantID][meter], samples...)
}

func (f *fakeSource) Tenants(context.Context) ([]model.TenantInfo, error) {
	if f.tenantErr != nil {
		return nil, f.tenantErr
	}
	return f.tenants, nil
}

func (f *fakeSource) Usage(_ context.Context, tenantID, meter string, start, end time.Time) ([]model.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tenantID+":"+meter)
	if !f.failAt.IsZero() && !start.Before(f.failAt) {
		return nil, errors.New("connection refused")
	}
	var out []model.Sample
	for _, s := range f.samples[tenantID][meter] {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---------- Fake locker ----------

type fakeLocker struct {
	mu   sync.Mutex
	held bool
}

func (l *fakeLocker) TryLock(context.Context, string) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
		return nil
	}, true, nil
}

// ---------- Fake archiver ----------

type fakeArchiver struct {
	archived []int64
	err      error
}

func (a *fakeArchiver) Archive(_ context.Context, order *model.SalesOrder, _ *model.Statement) error {
	a.archived = append(a.archived, order.ID)
	return a.err
}
