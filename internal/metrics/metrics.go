// Package metrics exposes Prometheus collectors for the scrape pool.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolUnitsTotal           *prometheus.CounterVec
	poolWorkerRestartsTotal  prometheus.Counter
	poolWorkersAlive         prometheus.Gauge
	poolHeartbeatAgeSeconds  *prometheus.GaugeVec
	poolRateLimitWaitSeconds prometheus.Histogram
	poolUnitDurationSeconds  prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		poolUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "legiscrawl_units_total",
				Help: "Total number of work units processed, labeled by result.",
			},
			[]string{"result"},
		)

		poolWorkerRestartsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "legiscrawl_worker_restarts_total",
				Help: "Total number of worker restarts triggered by the supervisor.",
			},
		)

		poolWorkersAlive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "legiscrawl_workers_alive",
				Help: "Number of worker slots currently alive.",
			},
		)

		poolHeartbeatAgeSeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "legiscrawl_heartbeat_age_seconds",
				Help: "Age of each worker's last heartbeat, labeled by worker index.",
			},
			[]string{"worker"},
		)

		poolRateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "legiscrawl_rate_limit_wait_seconds",
				Help:    "Histogram of delays introduced by the per-worker rate limiter.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
		)

		poolUnitDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "legiscrawl_unit_duration_seconds",
				Help:    "Histogram of per-unit fetch and extract durations.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		)
	})
}

// ObserveUnit records one processed unit and its duration.
func ObserveUnit(result string, d time.Duration) {
	if poolUnitsTotal == nil {
		return
	}
	poolUnitsTotal.WithLabelValues(result).Inc()
	poolUnitDurationSeconds.Observe(d.Seconds())
}

// ObserveRestart records a supervisor-triggered worker restart.
func ObserveRestart() {
	if poolWorkerRestartsTotal == nil {
		return
	}
	poolWorkerRestartsTotal.Inc()
}

// SetWorkersAlive records how many worker slots are currently alive.
func SetWorkersAlive(n int) {
	if poolWorkersAlive == nil {
		return
	}
	poolWorkersAlive.Set(float64(n))
}

// SetHeartbeatAge records the age of one worker's last heartbeat.
func SetHeartbeatAge(workerIndex int, age time.Duration) {
	if poolHeartbeatAgeSeconds == nil {
		return
	}
	poolHeartbeatAgeSeconds.WithLabelValues(strconv.Itoa(workerIndex)).Set(age.Seconds())
}

// ObserveRateLimitWait records a delay introduced by the rate limiter.
func ObserveRateLimitWait(d time.Duration) {
	if poolRateLimitWaitSeconds == nil {
		return
	}
	poolRateLimitWaitSeconds.Observe(d.Seconds())
}
