// Package metrics exports table metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/plaindb/docstore"
)

// Prometheus implements docstore.MetricsCollector.
type Prometheus struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	cache     *prometheus.CounterVec
	documents *prometheus.GaugeVec
}

var _ docstore.MetricsCollector = (*Prometheus)(nil)

// NewPrometheus registers the plaindb collectors on reg. Passing
// prometheus.DefaultRegisterer exposes them through promhttp.Handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		opLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plaindb_operation_duration_seconds",
			Help:    "Latency of table operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "op"}),
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plaindb_operations_total",
			Help: "Table operations by outcome",
		}, []string{"table", "op", "status"}),
		cache: f.NewCounterVec(prometheus.CounterOpts{
			Name: "plaindb_query_cache_total",
			Help: "Search lookups in the query cache by result",
		}, []string{"table", "result"}),
		documents: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plaindb_documents",
			Help: "Documents in a table after its last write",
		}, []string{"table"}),
	}
}

func (p *Prometheus) RecordOp(table, op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.opLatency.WithLabelValues(table, op).Observe(d.Seconds())
	p.ops.WithLabelValues(table, op, status).Inc()
}

func (p *Prometheus) RecordCache(table string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cache.WithLabelValues(table, result).Inc()
}

func (p *Prometheus) RecordSize(table string, n int) {
	p.documents.WithLabelValues(table).Set(float64(n))
}

// Handler serves the metrics gathered by g for /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
