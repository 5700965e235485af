package render

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v4"

	"duckstack/internal/domain"
)

const metricsSuffix = ".metrics.yaml"

// MetricValue is one evaluated metric. A nil Value means the query failed.
type MetricValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Rendered is a dashboard read back from an output directory.
type Rendered struct {
	Slug        string          `json:"slug"`
	Config      DashboardConfig `json:"config"`
	GeneratedAt string          `json:"generated_at,omitempty"`
	Values      []MetricValue   `json:"values"`
}

// List returns the slugs of every dashboard configuration in dir, sorted.
// A missing dir holds no dashboards.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output directory: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, metricsSuffix) {
			continue
		}
		slugs = append(slugs, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Read loads the configuration and metric values of one dashboard. The
// metric values file is optional; metrics keep their declaration order.
func Read(dir, slug string) (*Rendered, error) {
	if slug == "" || slug != filepath.Base(slug) || strings.HasPrefix(slug, ".") {
		return nil, domain.ErrValidation("invalid dashboard slug %q", slug)
	}

	data, err := os.ReadFile(filepath.Join(dir, slug+".yaml")) //nolint:gosec // slug is a single path element
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound("dashboard %q not found", slug)
		}
		return nil, fmt.Errorf("read dashboard %q: %w", slug, err)
	}
	out := &Rendered{Slug: slug}
	if err := yaml.Unmarshal(data, &out.Config); err != nil {
		return nil, fmt.Errorf("parse dashboard %q: %w", slug, err)
	}

	data, err = os.ReadFile(filepath.Join(dir, slug+metricsSuffix)) //nolint:gosec // see above
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read metrics of %q: %w", slug, err)
	}
	if err := decodeValues(data, out); err != nil {
		return nil, fmt.Errorf("parse metrics of %q: %w", slug, err)
	}
	return out, nil
}

func decodeValues(data []byte, out *Rendered) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping")
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "generated_at":
			out.GeneratedAt = val.Value
		case "metrics":
			if val.Kind != yaml.MappingNode {
				return fmt.Errorf("metrics: expected a mapping")
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				var v any
				if err := val.Content[j+1].Decode(&v); err != nil {
					return fmt.Errorf("metric %q: %w", val.Content[j].Value, err)
				}
				out.Values = append(out.Values, MetricValue{Name: val.Content[j].Value, Value: v})
			}
		}
	}
	return nil
}
