package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metering_sweep_duration_seconds",
		Help:    "Duration of usage collection sweeps",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	})

	WindowsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metering_windows_committed_total",
		Help: "Collection windows committed across all tenants",
	})

	// TenantErrors counts tenants stopped during a sweep, by reason.
	TenantErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metering_tenant_errors_total",
		Help: "Tenants whose collection stopped early",
	}, []string{"reason"})

	UsageEntriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metering_usage_entries_total",
		Help: "Usage entries written",
	})

	UntrustedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metering_untrusted_samples_total",
		Help: "Samples discarded because their source is not trusted",
	})

	// SalesOrders counts sales-order generation outcomes.
	SalesOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metering_sales_orders_total",
		Help: "Sales-order generation attempts by mode and result",
	}, []string{"mode", "result"})
)
