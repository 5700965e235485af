// Package scheduler turns source refresh intervals into cron entries that
// report the source as changed.
package scheduler

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"duckstack/internal/service/pipeline"
)

// Reporter receives the names of sources whose refresh interval elapsed.
// *tracker.Tracker satisfies it.
type Reporter interface {
	ReportChange(changed ...string) []string
}

// Scheduler manages cron-based source refreshes.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[string]cron.EntryID // source name → cron entry
}

// New creates a scheduler that reports refreshes to reporter.
func New(reporter Reporter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		cron:     cron.New(),
		reporter: reporter,
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start starts the cron loop. Entries added by Reload before or after Start
// are both honoured.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("refresh scheduler started")
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("refresh scheduler stopped")
}

// Reload clears all entries and schedules every source of spec that has a
// refresh interval. Sources with an unparseable interval are logged and
// skipped. It returns the number of scheduled sources.
func (s *Scheduler) Reload(spec *pipeline.Specification) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = make(map[string]cron.EntryID)

	for _, src := range spec.Sources() {
		if src.RefreshInterval == "" {
			continue
		}
		schedule, err := ParseInterval(src.RefreshInterval)
		if err != nil {
			s.logger.Warn("invalid refresh interval",
				"source", src.Name,
				"refresh_interval", src.RefreshInterval,
				"error", err,
			)
			continue
		}
		name := src.Name
		s.entries[name] = s.cron.Schedule(schedule, cron.FuncJob(func() {
			affected := s.reporter.ReportChange(name)
			s.logger.Debug("scheduled refresh", "source", name, "affected", len(affected))
		}))
		s.logger.Info("scheduled source refresh", "source", name, "refresh_interval", src.RefreshInterval)
	}
	return len(s.entries)
}

// Scheduled returns the sorted names of sources that currently have an entry.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// trigger runs the job for name immediately. Used by tests.
func (s *Scheduler) trigger(name string) bool {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.cron.Entry(id).Job.Run()
	return true
}

// ParseInterval accepts a duration ("30s", "5m", "1h"), a day count ("1d"),
// or a standard cron expression including descriptors such as "@hourly" and
// "@every 10m".
func ParseInterval(interval string) (cron.Schedule, error) {
	interval = strings.TrimSpace(interval)
	if interval == "" {
		return nil, fmt.Errorf("empty refresh interval")
	}
	if d, ok, err := parseEvery(interval); ok {
		if err != nil {
			return nil, err
		}
		return cron.Every(d), nil
	}
	schedule, err := cron.ParseStandard(interval)
	if err != nil {
		return nil, fmt.Errorf("parse refresh interval %q: %w", interval, err)
	}
	return schedule, nil
}

// parseEvery reports ok when interval looks like a plain duration.
func parseEvery(interval string) (time.Duration, bool, error) {
	if strings.ContainsAny(interval, " @*") {
		return 0, false, nil
	}
	var d time.Duration
	if days, found := strings.CutSuffix(interval, "d"); found {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, true, fmt.Errorf("parse refresh interval %q: %w", interval, err)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		d, err = time.ParseDuration(interval)
		if err != nil {
			return 0, true, fmt.Errorf("parse refresh interval %q: %w", interval, err)
		}
	}
	if d < time.Second {
		return 0, true, fmt.Errorf("refresh interval %q must be at least 1s", interval)
	}
	return d, true, nil
}
