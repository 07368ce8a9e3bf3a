package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the account pool service
type Metrics struct {
	// Allocation metrics
	AllocationsTotal    prometheus.Counter
	AllocationErrors    *prometheus.CounterVec
	AllocationDuration  prometheus.Histogram
	LockAcquireFailures prometheus.Counter

	// Release metrics
	ReleasesTotal prometheus.Counter
	ReleaseErrors *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitDenials *prometheus.CounterVec

	// Failure / recovery metrics
	AccountErrors     *prometheus.CounterVec
	FloodWaitsTotal   prometheus.Counter
	RecoveriesTotal   prometheus.Counter
	RecoveryQueueSize prometheus.Gauge
	SweepDuration     prometheus.Histogram

	// Maintenance metrics
	StaleLocksReclaimed prometheus.Counter
	DailyResetsTotal    prometheus.Counter

	// Pool health
	AccountsByStatus *prometheus.GaugeVec
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

func init() {
	// Initialize DefaultMetrics on package import
	GetDefaultMetrics()
}

// NewMetrics creates a new Metrics instance with all counters and gauges
func NewMetrics() *Metrics {
	return &Metrics{
		AllocationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_allocations_total",
			Help: "Total number of successful account allocations",
		}),
		AllocationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_pool_allocation_errors_total",
				Help: "Total number of failed allocation attempts",
			},
			[]string{"reason"},
		),
		AllocationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "account_pool_allocation_duration_seconds",
			Help:    "Time spent selecting and locking an account",
			Buckets: prometheus.DefBuckets,
		}),
		LockAcquireFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_lock_acquire_failures_total",
			Help: "Total number of candidates skipped because another caller held the lock",
		}),

		ReleasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_releases_total",
			Help: "Total number of lease releases",
		}),
		ReleaseErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_pool_release_errors_total",
				Help: "Total number of failed lease releases",
			},
			[]string{"reason"},
		),

		RateLimitDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_pool_rate_limit_denials_total",
				Help: "Total number of rate limit denials by reason",
			},
			[]string{"reason"},
		),

		AccountErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_pool_account_errors_total",
				Help: "Total number of classified account errors by kind",
			},
			[]string{"kind"},
		),
		FloodWaitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_flood_waits_total",
			Help: "Total number of flood wait transitions",
		}),
		RecoveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_recoveries_total",
			Help: "Total number of accounts recovered to active",
		}),
		RecoveryQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "account_pool_recovery_queue_size",
			Help: "Current number of pending recovery entries",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "account_pool_recovery_sweep_duration_seconds",
			Help:    "Duration of recovery sweep runs",
			Buckets: prometheus.DefBuckets,
		}),

		StaleLocksReclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_stale_locks_reclaimed_total",
			Help: "Total number of locked accounts reverted after their lock key expired",
		}),
		DailyResetsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "account_pool_daily_resets_total",
			Help: "Total number of daily counter reset runs",
		}),

		AccountsByStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "account_pool_accounts_by_status",
				Help: "Current number of accounts per status",
			},
			[]string{"status"},
		),
	}
}
