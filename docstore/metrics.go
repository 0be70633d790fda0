package docstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from tables.
// metrics.Prometheus is the Prometheus implementation.
type MetricsCollector interface {
	// RecordOp is called after every table operation with its name
	// ("insert", "search", ...), how long it took and its error, if any.
	RecordOp(table, op string, duration time.Duration, err error)

	// RecordCache is called by Search with whether the query cache answered.
	RecordCache(table string, hit bool)

	// RecordSize is called after every successful write with the number of
	// documents now in the table.
	RecordSize(table string, n int)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordOp(string, string, time.Duration, error) {}
func (NoopMetrics) RecordCache(string, bool)                      {}
func (NoopMetrics) RecordSize(string, int)                        {}

// BasicMetrics counts in memory. Useful in tests and for debugging without a
// metrics backend.
type BasicMetrics struct {
	Ops         atomic.Int64
	Errors      atomic.Int64
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
	LastSize    atomic.Int64
}

func (b *BasicMetrics) RecordOp(_, _ string, _ time.Duration, err error) {
	b.Ops.Add(1)
	if err != nil {
		b.Errors.Add(1)
	}
}

func (b *BasicMetrics) RecordCache(_ string, hit bool) {
	if hit {
		b.CacheHits.Add(1)
		return
	}
	b.CacheMisses.Add(1)
}

func (b *BasicMetrics) RecordSize(_ string, n int) {
	b.LastSize.Store(int64(n))
}
