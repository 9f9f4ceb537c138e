package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/metering/internal/config"
	"github.com/edvin/metering/internal/metrics"
	"github.com/edvin/metering/internal/model"
	"github.com/edvin/metering/internal/transformer"
)

const (
	sweepLockKey        = "metering:sweep"
	knownResourcesLimit = 100_000

	integrityErrorMsg   = "Integrity error"
	operationalErrorMsg = "Operational error"
)

// TenantResult reports one window of one tenant in a sweep. Failed results
// carry Error and leave Updated false.
type TenantResult struct {
	ID      string    `json:"id"`
	Updated bool      `json:"updated"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Error   string    `json:"error,omitempty"`
}

// SweepResult is the outcome of a collection sweep.
type SweepResult struct {
	Tenants []TenantResult `json:"tenants"`
	Errors  int            `json:"errors"`
	// Scanned is the number of tenants listed by the metering source,
	// including those that had no window to collect.
	Scanned int `json:"-"`
}

// SweepSummary condenses a SweepResult to counts. Its size depends on the
// number of failed tenants only, not on the number of windows.
type SweepSummary struct {
	Tenants          int      `json:"tenants"`
	WindowsCommitted int      `json:"windows_committed"`
	Errors           int      `json:"errors"`
	FailedTenants    []string `json:"failed_tenants,omitempty"`
}

// Summary counts the committed windows and failed tenants of the sweep.
func (r *SweepResult) Summary() SweepSummary {
	s := SweepSummary{Tenants: r.Scanned, Errors: r.Errors}
	failed := map[string]struct{}{}
	for _, t := range r.Tenants {
		if t.Updated {
			s.WindowsCommitted++
		}
		if t.Error != "" {
			failed[t.ID] = struct{}{}
		}
	}
	if len(failed) > 0 {
		s.FailedTenants = sortedKeys(failed)
	}
	return s
}

// CollectionService pulls usage from the metering source into the store,
// one hour window at a time, advancing each tenant's watermark only when the
// window's usage is committed.
type CollectionService struct {
	store        Store
	source       Source
	cfg          *config.Collection
	transformers map[string]transformer.Transformer
	locker       Locker
	workers      int
	known        *lru.Cache[string, struct{}]
	logger       zerolog.Logger
}

// NewCollectionService builds the transformer of every configured meter,
// failing on an unknown transformer name. locker may be nil.
func NewCollectionService(store Store, source Source, cfg *config.Collection, locker Locker, workers int, logger zerolog.Logger) (*CollectionService, error) {
	opts := transformer.Options{
		TrackedStates: cfg.Transformers.Uptime.TrackedStates,
		NoneValues:    cfg.Transformers.FromImage.NoneValues,
		SizeField:     cfg.Transformers.FromImage.SizeField,
	}
	transformers := make(map[string]transformer.Transformer, len(cfg.MeterMappings))
	for meter, m := range cfg.MeterMappings {
		t, err := transformer.New(m.Transformer, opts)
		if err != nil {
			return nil, fmt.Errorf("meter %s: %w", meter, err)
		}
		transformers[meter] = t
	}

	known, err := lru.New[string, struct{}](knownResourcesLimit)
	if err != nil {
		return nil, fmt.Errorf("create resource cache: %w", err)
	}
	if workers < 1 {
		workers = 1
	}

	return &CollectionService{
		store:        store,
		source:       source,
		cfg:          cfg,
		transformers: transformers,
		locker:       locker,
		workers:      workers,
		known:        known,
		logger:       logger.With().Str("component", "collection").Logger(),
	}, nil
}

// Sweep collects every tenant up to now truncated to the hour. Tenants run
// in parallel up to the configured worker count; the windows of one tenant
// always run in order. A tenant that fails stops at its last committed
// window and is reported in the result; the sweep itself only fails when
// the tenant list cannot be fetched or the lock is held elsewhere.
func (s *CollectionService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, sweepLockKey)
		if err != nil {
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			return nil, ErrSweepRunning
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn().Err(err).Msg("release sweep lock")
			}
		}()
	}

	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	end := now.UTC().Truncate(WindowSize)
	logger := s.logger.With().Str("sweep_id", uuid.NewString()).Logger()
	logger.Info().Time("end", end).Msg("usage sweep started")

	tenants, err := s.source.Tenants(ctx)
	if err != nil {
		return nil, upstream("list tenants", err)
	}

	perTenant := make([][]TenantResult, len(tenants))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, t := range tenants {
		g.Go(func() error {
			perTenant[i] = s.collectTenant(ctx, t, end, logger)
			return nil
		})
	}
	_ = g.Wait()

	result := &SweepResult{Tenants: []TenantResult{}, Scanned: len(tenants)}
	committed := false
	for _, results := range perTenant {
		for _, r := range results {
			if r.Error != "" {
				result.Errors++
			}
			if r.Updated {
				committed = true
			}
			result.Tenants = append(result.Tenants, r)
		}
	}

	if committed {
		if err := s.store.SetLastRun(ctx, end); err != nil {
			return result, fmt.Errorf("set last run: %w", err)
		}
	}

	logger.Info().
		Int("tenants", len(tenants)).
		Int("errors", result.Errors).
		Time("end", end).
		Msg("usage sweep finished")
	return result, nil
}

// collectTenant walks one tenant's windows from its watermark to end:
// Pending(w) becomes Committed(w) and moves on to the next window, any
// failure stops the tenant at the last committed window.
func (s *CollectionService) collectTenant(ctx context.Context, info model.TenantInfo, end time.Time, logger zerolog.Logger) []TenantResult {
	logger = logger.With().Str("tenant_id", info.ID).Logger()

	tenant, err := s.store.UpsertTenant(ctx, info)
	if err != nil {
		logger.Error().Err(err).Msg("upsert tenant")
		metrics.TenantErrors.WithLabelValues("storage").Inc()
		return []TenantResult{{ID: info.ID, Start: end, End: end, Error: operationalErrorMsg}}
	}

	var results []TenantResult
	for w := range Windows(tenant.LastCollected, end, s.cfg.MaxWindowsPerCycle) {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Time("start", w.Start).Msg("collection cancelled")
			break
		}

		logger.Info().Time("start", w.Start).Time("end", w.End).Msg("collecting window")

		commit, err := s.collectWindow(ctx, tenant.ID, w, logger)
		if err == nil {
			err = s.store.CommitWindow(ctx, commit)
		}
		if err != nil {
			results = append(results, s.failure(tenant.ID, w, err, logger))
			break
		}

		for _, r := range commit.Resources {
			s.known.Add(knownKey(tenant.ID, r.ID), struct{}{})
		}
		metrics.WindowsCommitted.Inc()
		metrics.UsageEntriesWritten.Add(float64(len(commit.Entries)))
		results = append(results, TenantResult{ID: tenant.ID, Updated: true, Start: w.Start, End: w.End})
	}
	return results
}

func (s *CollectionService) failure(tenantID string, w model.Window, err error, logger zerolog.Logger) TenantResult {
	r := TenantResult{ID: tenantID, Start: w.Start, End: w.End}
	var upErr *UpstreamError
	switch {
	case errors.Is(err, ErrConflict):
		logger.Warn().Err(err).Time("start", w.Start).Msg("window conflicts with stored usage")
		metrics.TenantErrors.WithLabelValues("conflict").Inc()
		r.Error = integrityErrorMsg
	case errors.As(err, &upErr):
		logger.Warn().Err(err).Time("start", w.Start).Msg("metering source failed")
		metrics.TenantErrors.WithLabelValues("upstream").Inc()
		r.Error = "Upstream error: " + upErr.Error()
	default:
		logger.Error().Err(err).Time("start", w.Start).Msg("collect window")
		metrics.TenantErrors.WithLabelValues("storage").Inc()
		r.Error = operationalErrorMsg
	}
	return r
}

// collectWindow fetches and transforms every configured meter for one
// window and stages the rows to commit. Nothing is written here.
func (s *CollectionService) collectWindow(ctx context.Context, tenantID string, w model.Window, logger zerolog.Logger) (model.WindowCommit, error) {
	commit := model.WindowCommit{TenantID: tenantID, Start: w.Start, End: w.End}
	staged := map[string]bool{}

	for _, meter := range s.cfg.MeterNames() {
		mapping := s.cfg.MeterMappings[meter]
		upstreamMeter := s.cfg.UpstreamMeter(meter)

		samples, err := s.source.Usage(ctx, tenantID, upstreamMeter, w.Start, w.End)
		if err != nil {
			return commit, upstream("usage "+upstreamMeter, err)
		}

		groups := FilterAndGroup(samples, s.cfg.TrustSources, logger)
		service := mapping.ServiceFor(meter)
		tr := s.transformers[meter]

		for _, upstreamID := range sortedKeys(groups) {
			group := groups[upstreamID]
			volumes := tr.TransformUsage(service, group, w)
			if len(volumes) == 0 {
				continue
			}

			resID := mapping.ResourceID(upstreamID)
			if !staged[resID] && !s.known.Contains(knownKey(tenantID, resID)) {
				staged[resID] = true
				commit.Resources = append(commit.Resources, model.Resource{
					ID:       resID,
					TenantID: tenantID,
					Type:     mapping.Type,
					Metadata: metadataSnapshot(mapping, group[len(group)-1]),
				})
			}

			for _, svc := range sortedKeys(volumes) {
				commit.Entries = append(commit.Entries, model.UsageEntry{
					TenantID:   tenantID,
					ResourceID: resID,
					Service:    svc,
					Volume:     volumes[svc],
					Unit:       mapping.Unit,
					Start:      w.Start,
					End:        w.End,
				})
			}
		}
	}
	return commit, nil
}

// LastCollected returns the ceiling of the last sweep that committed
// anything.
func (s *CollectionService) LastCollected(ctx context.Context) (time.Time, error) {
	t, err := s.store.GetLastRun(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("get last run: %w", err)
	}
	return t, nil
}

// metadataSnapshot extracts the configured metadata fields from a sample;
// for each field the first source present wins.
func metadataSnapshot(mapping config.MeterMapping, sample model.Sample) map[string]any {
	md := make(map[string]any, len(mapping.Metadata))
	for field, def := range mapping.Metadata {
		if v, ok := transformer.MetadataString(sample.Metadata, def.Sources...); ok {
			md[field] = v
			continue
		}
		md[field] = def.Default
	}
	return md
}

func upstream(op string, err error) error {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

func knownKey(tenantID, resourceID string) string {
	return tenantID + "/" + resourceID
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
