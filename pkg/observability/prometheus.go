package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements every hook interface with Prometheus collectors.
type Prometheus struct {
	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	measures      *prometheus.HistogramVec
	passes        prometheus.Histogram
	splits        prometheus.Counter

	cacheTotal *prometheus.CounterVec
	cacheBytes *prometheus.CounterVec

	httpInFlight *prometheus.GaugeVec
	httpTotal    *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewPrometheus registers satie's collectors with reg. Registering twice
// with the same registry panics.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		stageTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "satie_stage_total",
			Help: "Pipeline stage runs by stage and result",
		}, []string{"stage", "result"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "satie_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}, []string{"stage"}),
		measures: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "satie_stage_measures",
			Help:    "Measures per pipeline stage run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"stage"}),
		passes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "satie_validate_passes",
			Help:    "Validation passes needed to reach a fixed point",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}),
		splits: f.NewCounter(prometheus.CounterOpts{
			Name: "satie_measure_splits_total",
			Help: "Measures split by the overflow fixup",
		}),
		cacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "satie_cache_requests_total",
			Help: "Cache lookups by key type and result",
		}, []string{"key_type", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "satie_cache_written_bytes_total",
			Help: "Bytes written to the cache by key type",
		}, []string{"key_type"}),
		httpInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "satie_http_requests_in_flight",
			Help: "API requests currently being served",
		}, []string{"route"}),
		httpTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "satie_http_requests_total",
			Help: "API responses by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "satie_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"method", "route"}),
		httpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "satie_http_errors_total",
			Help: "API handler errors by route",
		}, []string{"route"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnValidateStart(_ context.Context, measures int) {
	p.measures.WithLabelValues("validate").Observe(float64(measures))
}

func (p *Prometheus) OnValidateComplete(_ context.Context, passes, splits int, d time.Duration, err error) {
	p.stageTotal.WithLabelValues("validate", result(err)).Inc()
	p.stageDuration.WithLabelValues("validate").Observe(d.Seconds())
	if err == nil {
		p.passes.Observe(float64(passes))
	}
}

func (p *Prometheus) OnMeasureSplit(context.Context, int64, int) {
	p.splits.Inc()
}

func (p *Prometheus) OnLayoutStart(_ context.Context, measures int) {
	p.measures.WithLabelValues("layout").Observe(float64(measures))
}

func (p *Prometheus) OnLayoutComplete(_ context.Context, _ int, d time.Duration, err error) {
	p.stageTotal.WithLabelValues("layout", result(err)).Inc()
	p.stageDuration.WithLabelValues("layout").Observe(d.Seconds())
}

func (p *Prometheus) OnCacheHit(_ context.Context, keyType string) {
	p.cacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *Prometheus) OnRequest(_ context.Context, _, route string) {
	p.httpInFlight.WithLabelValues(route).Inc()
}

func (p *Prometheus) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	p.httpInFlight.WithLabelValues(route).Dec()
	p.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Prometheus) OnError(_ context.Context, _, route string, _ error) {
	p.httpErrors.WithLabelValues(route).Inc()
}

var (
	_ PipelineHooks = (*Prometheus)(nil)
	_ CacheHooks    = (*Prometheus)(nil)
	_ HTTPHooks     = (*Prometheus)(nil)
)
