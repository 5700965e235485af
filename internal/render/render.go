// Package render writes the serving layer as per-dashboard YAML files.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"

	"duckstack/internal/domain"
)

// Querier evaluates a single-value metric query.
type Querier interface {
	QueryScalar(ctx context.Context, query string) (any, error)
}

// Compile-time check.
var _ domain.Renderer = (*FileRenderer)(nil)

// FileRenderer writes <slug>.yaml (dashboard configuration) and
// <slug>.metrics.yaml (evaluated metric values) for every dashboard. Slugs
// never contain a dot, so the two names cannot collide.
type FileRenderer struct {
	dir    string
	query  Querier
	logger *slog.Logger
	now    func() time.Time
}

// NewFileRenderer creates a renderer writing into dir.
func NewFileRenderer(dir string, q Querier, logger *slog.Logger) *FileRenderer {
	return &FileRenderer{dir: dir, query: q, logger: logger, now: time.Now}
}

// Dir returns the output directory.
func (r *FileRenderer) Dir() string { return r.dir }

// MetricConfig is a metric entry of a dashboard configuration file.
type MetricConfig struct {
	Name        string `yaml:"name" json:"name"`
	Query       string `yaml:"query" json:"query"`
	Format      string `yaml:"format,omitempty" json:"format,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ChartConfig is a chart entry of a dashboard configuration file.
type ChartConfig struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Query   string `yaml:"query" json:"query"`
	XAxis   string `yaml:"x_axis,omitempty" json:"x_axis,omitempty"`
	YAxis   string `yaml:"y_axis,omitempty" json:"y_axis,omitempty"`
	ColorBy string `yaml:"color_by,omitempty" json:"color_by,omitempty"`
}

// DashboardConfig is the content of <slug>.yaml.
type DashboardConfig struct {
	Name            string         `yaml:"name" json:"name"`
	RefreshInterval string         `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`
	AccessRoles     []string       `yaml:"access_roles,omitempty" json:"access_roles,omitempty"`
	Tables          []string       `yaml:"tables" json:"tables"`
	Metrics         []MetricConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Charts          []ChartConfig  `yaml:"charts,omitempty" json:"charts,omitempty"`
}

// Render writes both files for each dashboard. A failing metric query is
// logged and recorded as null; file system errors fail the render. Two
// dashboards sharing a slug fail the render before anything is written.
func (r *FileRenderer) Render(ctx context.Context, serving domain.ServingLayer, available []string) error {
	if err := checkSlugs(serving.Dashboards); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, d := range serving.Dashboards {
		slug := Slug(d.Name)
		if err := r.writeYAML(slug+".yaml", configFor(d, available)); err != nil {
			return err
		}

		values, err := r.metricValues(ctx, d)
		if err != nil {
			return err
		}
		if err := r.writeYAML(slug+metricsSuffix, values); err != nil {
			return err
		}
		r.logger.Info("dashboard rendered", "dashboard", d.Name, "metrics", len(d.Metrics), "charts", len(d.Charts))
	}
	return nil
}

func checkSlugs(dashboards []domain.Dashboard) error {
	owners := make(map[string]string, len(dashboards))
	for _, d := range dashboards {
		slug := Slug(d.Name)
		if prev, ok := owners[slug]; ok {
			return domain.ErrValidation("dashboards %q and %q both render to %q", prev, d.Name, slug)
		}
		owners[slug] = d.Name
	}
	return nil
}

func configFor(d domain.Dashboard, available []string) DashboardConfig {
	cfg := DashboardConfig{
		Name:            d.Name,
		RefreshInterval: d.RefreshInterval,
		AccessRoles:     d.AccessRoles,
		Tables:          available,
	}
	for _, m := range d.Metrics {
		cfg.Metrics = append(cfg.Metrics, MetricConfig{
			Name: m.Name, Query: m.Query, Format: m.Format, Description: m.Description,
		})
	}
	for _, c := range d.Charts {
		cfg.Charts = append(cfg.Charts, ChartConfig{
			Name: c.Name, Type: string(c.Type), Query: c.Query,
			XAxis: c.XAxis, YAxis: c.YAxis, ColorBy: c.ColorBy,
		})
	}
	return cfg
}

// metricValues builds an ordered mapping: dashboard, generated_at, and a
// metrics mapping of name to value in declaration order.
func (r *FileRenderer) metricValues(ctx context.Context, d domain.Dashboard) (*yaml.Node, error) {
	metrics := &yaml.Node{Kind: yaml.MappingNode}
	for _, m := range d.Metrics {
		v, err := r.query.QueryScalar(ctx, m.Query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("metric query failed", "dashboard", d.Name, "metric", m.Name, "error", err)
			v = nil
		}
		val, err := valueNode(v)
		if err != nil {
			return nil, fmt.Errorf("encode metric %q: %w", m.Name, err)
		}
		metrics.Content = append(metrics.Content, strNode(m.Name), val)
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content,
		strNode("dashboard"), strNode(d.Name),
		strNode("generated_at"), strNode(r.now().UTC().Format(time.RFC3339)),
		strNode("metrics"), metrics,
	)
	return root, nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func valueNode(v any) (*yaml.Node, error) {
	if v == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

func (r *FileRenderer) writeYAML(name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Slug turns a dashboard name into a file name stem: lower case, runs of
// anything other than letters and digits collapsed to one underscore.
func Slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "dashboard"
	}
	return b.String()
}
