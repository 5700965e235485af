package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesConfig = `name: Sales Overview
refresh_interval: 5m
tables: [raw_sales, sales_daily]
metrics:
  - name: Total Sales
    query: SELECT SUM(daily_sales) FROM sales_daily
    format: $,.2f
  - name: Broken
    query: SELECT 1 FROM gone
charts:
  - name: Weekly
    type: line
    query: SELECT * FROM sales_weekly
    x_axis: week
    y_axis: total
`

const salesMetrics = `dashboard: Sales Overview
generated_at: "2024-01-02T03:04:05Z"
metrics:
  Total Sales: 1234.5
  Broken: null
`

func newTestServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_overview.yaml"), []byte(salesConfig), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales_overview.metrics.yaml"), []byte(salesMetrics), 0o600))
	opts.Dir = dir
	return New(opts), dir
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := get(t, s.Handler(), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAPI_ListDashboards(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := get(t, s.Handler(), "/api/dashboards")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dashboards []dashboardSummary `json:"dashboards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Dashboards, 1)
	assert.Equal(t, dashboardSummary{
		Slug: "sales_overview", Name: "Sales Overview", Metrics: 2, Charts: 1, GeneratedAt: "2024-01-02T03:04:05Z",
	}, body.Dashboards[0])
}

func TestAPI_GetDashboard(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	t.Run("found", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/dashboards/sales_overview")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Slug   string `json:"slug"`
			Values []struct {
				Name  string `json:"name"`
				Value any    `json:"value"`
			} `json:"values"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "sales_overview", body.Slug)
		require.Len(t, body.Values, 2)
		assert.Equal(t, "Total Sales", body.Values[0].Name)
		assert.InDelta(t, 1234.5, body.Values[0].Value, 0.001)
		assert.Nil(t, body.Values[1].Value)
	})

	t.Run("not found", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/dashboards/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not found")
	})

	t.Run("invalid slug", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/dashboards/.hidden")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_CORS(t *testing.T) {
	s, _ := newTestServer(t, Options{AllowedOrigins: []string{"https://bi.example.com"}})
	req := httptest.NewRequest(http.MethodGet, "/api/dashboards", nil)
	req.Header.Set("Origin", "https://bi.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://bi.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPI_RateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RequestsPerSecond: 0.001, Burst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, get(t, s.Handler(), "/api/dashboards").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Pages are not rate limited.
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _ := newTestServer(t, Options{})
		assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics").Code)
	})

	t.Run("enabled", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: "duckstack_test_total", Help: "test"})
		reg.MustRegister(c)
		c.Inc()

		s, _ := newTestServer(t, Options{Gatherer: reg})
		rec := get(t, s.Handler(), "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "duckstack_test_total 1")
	})
}

func TestPages(t *testing.T) {
	s, dir := newTestServer(t, Options{})

	t.Run("index", func(t *testing.T) {
		rec := get(t, s.Handler(), "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, `href="/dashboards/sales_overview"`)
		assert.Contains(t, body, "Sales Overview")
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := get(t, s.Handler(), "/dashboards/sales_overview")
		require.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "$1,234.50")
		assert.Contains(t, body, "n/a")
		assert.Contains(t, body, "x=week y=total")
	})

	t.Run("missing dashboard", func(t *testing.T) {
		rec := get(t, s.Handler(), "/dashboards/missing")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "Back to dashboards"))
	})

	t.Run("empty directory", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(dir, "sales_overview.yaml")))
		rec := get(t, s.Handler(), "/")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Nothing rendered yet")
	})
}

func TestRateLimiter_PrunesStaleClients(t *testing.T) {
	l := newRateLimiter(1, 1)
	now := l.now()
	l.now = func() time.Time { return now }
	l.get("10.0.0.1")

	l.now = func() time.Time { return now.Add(staleClient + time.Minute) }
	l.get("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.clients, 1)
	assert.Contains(t, l.clients, "10.0.0.2")
}
