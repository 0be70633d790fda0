package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/plaindb/docstore"
	"github.com/stevemurr/plaindb/metrics"
	"github.com/stevemurr/plaindb/query"
	"github.com/stevemurr/plaindb/store"
)

func scrape(t *testing.T, g prometheus.Gatherer) string {
	t.Helper()
	srv := httptest.NewServer(metrics.Handler(g))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := metrics.NewPrometheus(reg)

	p.RecordOp("users", "insert", time.Millisecond, nil)
	p.RecordOp("users", "insert", time.Millisecond, errors.New("boom"))
	p.RecordCache("users", true)
	p.RecordCache("users", false)
	p.RecordCache("users", false)
	p.RecordSize("users", 7)

	out := scrape(t, reg)
	for _, line := range []string{
		`plaindb_query_cache_total{result="hit",table="users"} 1`,
		`plaindb_query_cache_total{result="miss",table="users"} 2`,
		`plaindb_operations_total{op="insert",status="error",table="users"} 1`,
		`plaindb_operations_total{op="insert",status="success",table="users"} 1`,
		`plaindb_operation_duration_seconds_count{op="insert",table="users"} 2`,
		`plaindb_documents{table="users"} 7`,
	} {
		assert.Contains(t, out, line)
	}
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewPrometheus(reg)
	assert.Panics(t, func() { metrics.NewPrometheus(reg) })
}

func TestPrometheusWithDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	db, err := docstore.Open(store.NewMemoryStore(), docstore.WithMetrics(metrics.NewPrometheus(reg)))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.InsertMany(docstore.Document{"a": 1}, docstore.Document{"a": 2})
	require.NoError(t, err)
	p := query.Field("a").Ge(1)
	_, err = db.Search(p)
	require.NoError(t, err)
	_, err = db.Search(p)
	require.NoError(t, err)

	out := scrape(t, reg)
	assert.Contains(t, out, `plaindb_documents{table="_default"} 2`)
	assert.Contains(t, out, `plaindb_query_cache_total{result="hit",table="_default"} 1`)
	assert.Contains(t, out, `plaindb_operation_duration_seconds_count{op="search",table="_default"} 2`)
}
