package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every taskelio collector. It is separate from the default
// registry so tests can scrape it without global side effects.
var Registry = prometheus.NewRegistry()

var (
	automationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskelio",
		Name:      "automation_runs_total",
		Help:      "Automation runs by trigger type and final status.",
	}, []string{"trigger_type", "status"})

	generatorResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskelio",
		Name:      "generator_results_total",
		Help:      "Content generation results by task and variant (ok, degraded, error).",
	}, []string{"task", "variant"})

	detectorCandidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskelio",
		Name:      "detector_candidates_total",
		Help:      "Trigger candidates emitted by each detector.",
	}, []string{"detector"})

	detectorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskelio",
		Name:      "detector_scan_duration_seconds",
		Help:      "Detector scan duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"detector"})

	rateLimitDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskelio",
		Name:      "rate_limit_drops_total",
		Help:      "Requests rejected with 429 by path prefix.",
	}, []string{"prefix"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		automationRuns,
		generatorResults,
		detectorCandidates,
		detectorDuration,
		rateLimitDrops,
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func ObserveAutomationRun(triggerType, status string) {
	automationRuns.WithLabelValues(triggerType, status).Inc()
}

func ObserveGeneratorResult(task, variant string) {
	generatorResults.WithLabelValues(task, variant).Inc()
}

// ObserveDetectorScan records one scan and the number of candidates it produced.
func ObserveDetectorScan(detector string, started time.Time, candidates int) {
	detectorDuration.WithLabelValues(detector).Observe(time.Since(started).Seconds())
	detectorCandidates.WithLabelValues(detector).Add(float64(candidates))
}

// rateLimitStats mirrors the prometheus counter so callers can read totals
// without scraping.
type rateLimitStats struct {
	total    uint64
	mu       sync.Mutex
	byPrefix map[string]uint64
}

var rl rateLimitStats

// IncRateLimitDrop increments drop counters for the given prefix.
// Use prefix "global" for global limiter rejections.
func IncRateLimitDrop(prefix string) {
	if prefix == "" {
		prefix = "global"
	}
	rateLimitDrops.WithLabelValues(prefix).Inc()
	atomic.AddUint64(&rl.total, 1)
	rl.mu.Lock()
	if rl.byPrefix == nil {
		rl.byPrefix = make(map[string]uint64)
	}
	rl.byPrefix[prefix]++
	rl.mu.Unlock()
}

// RateLimitSnapshot returns a copy of the current counters.
func RateLimitSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&rl.total)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	by = make(map[string]uint64, len(rl.byPrefix))
	for k, v := range rl.byPrefix {
		by[k] = v
	}
	return total, by
}
