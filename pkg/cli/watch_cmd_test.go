package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/config"
	"duckstack/internal/declarative"
	"duckstack/internal/service/executor"
	"duckstack/internal/testutil"
)

type watchFixture struct {
	path     string
	watcher  *watcher
	out      *bytes.Buffer
	ingest   *testutil.MockIngestor
	exec     *testutil.MockExecutor
	renderer *testutil.MockRenderer
}

func newWatchFixture(t *testing.T) *watchFixture {
	t.Helper()
	path := writeStack(t, salesStack)
	logger := slog.New(slog.DiscardHandler)
	a := &app{cfg: &config.Config{StackPath: path}, logger: logger}

	state, err := declarative.Load(path)
	require.NoError(t, err)

	f := &watchFixture{
		path:     path,
		out:      &bytes.Buffer{},
		ingest:   &testutil.MockIngestor{},
		exec:     &testutil.MockExecutor{},
		renderer: &testutil.MockRenderer{},
	}
	collab := executor.Collaborators{Ingestor: f.ingest, Executor: f.exec, Renderer: f.renderer}
	f.watcher, err = newWatcher(a, f.out, state, declarative.ToSpecification(state), collab,
		[]executor.Option{executor.WithLogger(logger)})
	require.NoError(t, err)
	f.watcher.listen(context.Background())
	return f
}

func (f *watchFixture) rewrite(t *testing.T, old, replacement string) {
	t.Helper()
	require.Contains(t, salesStack, old)
	require.NoError(t, os.WriteFile(f.path, []byte(strings.Replace(salesStack, old, replacement, 1)), 0o600))
}

func TestWatcher_UnchangedStack(t *testing.T) {
	f := newWatchFixture(t)

	assert.False(t, f.watcher.reload(context.Background()))
	assert.Empty(t, f.exec.Calls)
	assert.Zero(t, f.renderer.Rendered)
}

func TestWatcher_TransformationChange(t *testing.T) {
	f := newWatchFixture(t)
	f.rewrite(t, "alias: total", "alias: weekly_total")

	require.True(t, f.watcher.reload(context.Background()))
	assert.Empty(t, f.ingest.Calls())
	assert.Equal(t, []string{"sales_weekly"}, f.exec.Calls)
	assert.Equal(t, 1, f.renderer.Rendered)
	assert.Contains(t, f.out.String(), `transformation "weekly" changed`)

	assert.False(t, f.watcher.reload(context.Background()), "second reload sees no change")
}

func TestWatcher_SourceChange(t *testing.T) {
	f := newWatchFixture(t)
	f.rewrite(t, "refresh_interval: 1h", "refresh_interval: 30m")

	require.True(t, f.watcher.reload(context.Background()))
	assert.Equal(t, []string{"raw_sales"}, f.ingest.Calls())
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, f.exec.Calls)
	assert.Equal(t, []string{"raw_sales"}, f.watcher.sched.Scheduled())
}

func TestWatcher_DashboardOnlyChange(t *testing.T) {
	f := newWatchFixture(t)
	f.rewrite(t, "type: bar", "type: line")

	require.True(t, f.watcher.reload(context.Background()))
	assert.Empty(t, f.ingest.Calls())
	assert.Empty(t, f.exec.Calls)
	assert.Equal(t, 1, f.renderer.Rendered)
}

func TestWatcher_InvalidChangeKeepsCurrent(t *testing.T) {
	tests := []struct {
		name             string
		old, replacement string
	}{
		{"structural error", "type: bar", "type: radar"},
		{"graph violation", "inputs: [raw_sales]", "inputs: [raw_orders]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWatchFixture(t)
			before := f.watcher.spec
			f.rewrite(t, tt.old, tt.replacement)

			assert.False(t, f.watcher.reload(context.Background()))
			assert.Same(t, before, f.watcher.spec)
			assert.Empty(t, f.exec.Calls)
			assert.Zero(t, f.renderer.Rendered)
		})
	}
}

func TestWatcher_UnreadableStack(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, os.WriteFile(f.path, []byte("spec: ["), 0o600))

	assert.False(t, f.watcher.reload(context.Background()))
}

func TestWatcher_ScheduledRefresh(t *testing.T) {
	f := newWatchFixture(t)

	require.Equal(t, []string{"raw_sales"}, f.watcher.sched.Scheduled())
	affected := f.watcher.tracker.ReportChange("raw_sales")
	assert.Equal(t, []string{"raw_sales", "sales_weekly", "sales_daily"}, affected)
	assert.Equal(t, []string{"raw_sales"}, f.ingest.Calls())
	assert.Equal(t, []string{"sales_daily", "sales_weekly"}, f.exec.Calls, "executed in dependency order")
}
