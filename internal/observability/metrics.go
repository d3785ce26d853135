package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	engineCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenectl",
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Total remote engine calls.",
		},
		[]string{"op", "success"},
	)
	engineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scenectl",
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Remote engine call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "success"},
	)
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenectl",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Proxy cache lookups by outcome.",
		},
		[]string{"layer", "outcome"},
	)
	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scenectl",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Proxy invalidations by trigger.",
		},
		[]string{"trigger"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(engineCalls, engineDuration, cacheLookups, invalidations)
	})
}

// RecordEngineCall counts one remote round trip by operation name.
func RecordEngineCall(op string, duration time.Duration, success bool) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	engineCalls.WithLabelValues(op, successLabel).Inc()
	engineDuration.WithLabelValues(op, successLabel).Observe(duration.Seconds())
}

// RecordCacheLookup counts one proxy cache lookup. Layer is "node" or
// "field"; outcome is "hit" or "miss".
func RecordCacheLookup(layer string, hit bool) {
	RegisterMetrics()
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(layer, outcome).Inc()
}

// RecordInvalidation counts proxies marked dead by one trigger
// ("remove", "set_item", "import", "parent").
func RecordInvalidation(trigger string, count int) {
	RegisterMetrics()
	invalidations.WithLabelValues(trigger).Add(float64(count))
}
