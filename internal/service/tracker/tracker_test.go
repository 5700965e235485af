package tracker

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/graph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func salesGraph() *graph.Graph {
	g := graph.New()
	g.AddNode("raw_sales")
	g.AddDependency("raw_sales", "sales_daily")
	g.AddDependency("sales_daily", "sales_weekly")
	return g
}

func TestReportChange(t *testing.T) {
	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"source", []string{"raw_sales"}, []string{"raw_sales", "sales_daily", "sales_weekly"}},
		{"middle", []string{"sales_daily"}, []string{"sales_daily", "sales_weekly"}},
		{"leaf", []string{"sales_weekly"}, []string{"sales_weekly"}},
		{"unknown carried through", []string{"orders"}, []string{"orders"}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(salesGraph(), discardLogger())
			assert.Equal(t, tt.want, tr.ReportChange(tt.changed...))
		})
	}
}

func TestReportChange_NotifiesInRegistrationOrder(t *testing.T) {
	tr := New(salesGraph(), discardLogger())

	var calls []string
	var got [][]string
	tr.RegisterListener(func(affected []string) {
		calls = append(calls, "first")
		got = append(got, affected)
	})
	tr.RegisterListener(func(affected []string) {
		calls = append(calls, "second")
		got = append(got, affected)
	})

	tr.ReportChange("sales_daily")

	assert.Equal(t, []string{"first", "second"}, calls)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, got[0])
	assert.Equal(t, got[0], got[1])
}

func TestReportChange_EmptyDoesNotNotify(t *testing.T) {
	tr := New(salesGraph(), discardLogger())
	called := false
	tr.RegisterListener(func([]string) { called = true })

	assert.Empty(t, tr.ReportChange())
	assert.False(t, called)
}

func TestReportChange_NoHistory(t *testing.T) {
	tr := New(salesGraph(), discardLogger())
	first := tr.ReportChange("raw_sales")
	second := tr.ReportChange("raw_sales")
	assert.Equal(t, first, second)
}

func TestReportChange_ListenerCannotCorruptResult(t *testing.T) {
	tr := New(salesGraph(), discardLogger())
	tr.RegisterListener(func(affected []string) { affected[0] = "tampered" })

	got := tr.ReportChange("raw_sales")
	assert.Equal(t, "raw_sales", got[0])
}

func TestUnregister(t *testing.T) {
	tr := New(salesGraph(), discardLogger())

	var calls []string
	a := tr.RegisterListener(func([]string) { calls = append(calls, "a") })
	tr.RegisterListener(func([]string) { calls = append(calls, "b") })

	tr.Unregister(a)
	tr.Unregister(ListenerID(999))
	tr.ReportChange("raw_sales")

	assert.Equal(t, []string{"b"}, calls)
}

func TestReplace(t *testing.T) {
	tr := New(salesGraph(), discardLogger())

	g := graph.New()
	g.AddDependency("raw_orders", "orders_daily")
	tr.Replace(g)

	assert.Equal(t, []string{"raw_sales"}, tr.ReportChange("raw_sales"))
	assert.Equal(t, []string{"raw_orders", "orders_daily"}, tr.ReportChange("raw_orders"))
}

func TestReportChange_Concurrent(t *testing.T) {
	tr := New(salesGraph(), discardLogger())

	var mu sync.Mutex
	count := 0
	tr.RegisterListener(func([]string) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.ReportChange("sales_daily")
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, count)
}

func TestNew_NilLogger(t *testing.T) {
	tr := New(salesGraph(), nil)
	var got []string
	tr.RegisterListener(func(affected []string) { got = affected })

	assert.NotPanics(t, func() { tr.ReportChange("sales_daily") })
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, got)
}
