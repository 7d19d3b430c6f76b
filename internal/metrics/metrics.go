package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds the service's Prometheus collectors. A nil *Registry is
// valid and records nothing.
type Registry struct {
	reg             *prometheus.Registry
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	Lookups         *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	TokenRefreshes  prometheus.Counter
	Runs            *prometheus.CounterVec
	RunDurationSec  prometheus.Histogram
	SkusEvaluated   prometheus.Counter
	ManifestUpserts prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "comps_cache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "comps_cache_misses_total"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "comps_lookups_total"}, []string{"outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "comps_retries_total"}, []string{"kind"})
	refreshes := prometheus.NewCounter(prometheus.CounterOpts{Name: "comps_token_refreshes_total"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "valuation_runs_total"}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "valuation_run_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	skus := prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_skus_evaluated_total"})
	upserts := prometheus.NewCounter(prometheus.CounterOpts{Name: "manifest_rows_upserted_total"})

	r.MustRegister(hits, misses, lookups, retries, refreshes, runs, runDuration, skus, upserts)
	return &Registry{
		reg:             r,
		CacheHits:       hits,
		CacheMisses:     misses,
		Lookups:         lookups,
		Retries:         retries,
		TokenRefreshes:  refreshes,
		Runs:            runs,
		RunDurationSec:  runDuration,
		SkusEvaluated:   skus,
		ManifestUpserts: upserts,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) CacheHit() {
	if r != nil {
		r.CacheHits.Inc()
	}
}

func (r *Registry) CacheMiss() {
	if r != nil {
		r.CacheMisses.Inc()
	}
}

// Lookup records the outcome of a network lookup: "ok", "exhausted" or "auth_error".
func (r *Registry) Lookup(outcome string) {
	if r != nil {
		r.Lookups.WithLabelValues(outcome).Inc()
	}
}

func (r *Registry) Retry(kind string) {
	if r != nil {
		r.Retries.WithLabelValues(kind).Inc()
	}
}

func (r *Registry) TokenRefresh() {
	if r != nil {
		r.TokenRefreshes.Inc()
	}
}

func (r *Registry) Run(status string, seconds float64, skus int) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(status).Inc()
	r.RunDurationSec.Observe(seconds)
	r.SkusEvaluated.Add(float64(skus))
}

func (r *Registry) Upserted(n int) {
	if r != nil {
		r.ManifestUpserts.Add(float64(n))
	}
}

// Push sends every collector to a Pushgateway under job. It is a no-op
// without a url.
func (r *Registry) Push(url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	return push.New(url, job).Gatherer(r.reg).Push()
}
