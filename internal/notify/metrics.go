package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes recorded on the dispatched counter.
const (
	OutcomeDelivered    = "delivered"
	OutcomeSelfExcluded = "self_excluded"
	OutcomeDeniedTenant = "denied_tenant"
	OutcomeSuppressed   = "suppressed_pref"
	OutcomeError        = "error"
)

var (
	Dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_dispatched_total",
		Help: "Total dispatch attempts by notification type and outcome.",
	}, []string{"type", "outcome"})

	DedupeRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_dedupe_refreshes_total",
		Help: "Total notifications refreshed in place via a dedupe key.",
	})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notify_scheduler_scan_duration_seconds",
		Help:    "Duration of periodic scheduler scans.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scheduler"})

	ScanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_scheduler_scan_failures_total",
		Help: "Total scheduler scans that ended with an error.",
	}, []string{"scheduler"})
)
