package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTableReferences(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"simple from", "SELECT * FROM sales_daily", []string{"sales_daily"}},
		{"lower case keyword", "select a from raw_sales where a > 1", []string{"raw_sales"}},
		{"alias", "SELECT s.a FROM sales_daily s", []string{"sales_daily"}},
		{"as alias", "SELECT s.a FROM sales_daily AS s", []string{"sales_daily"}},
		{"join", "SELECT * FROM a JOIN b ON a.id = b.id LEFT JOIN c USING (id)", []string{"a", "b", "c"}},
		{"comma list", "SELECT * FROM a x, b y, c", []string{"a", "b", "c"}},
		{"qualified", "SELECT * FROM main.sales_daily", []string{"main.sales_daily"}},
		{"quoted", `SELECT * FROM "Sales Daily"`, []string{"Sales Daily"}},
		{"dedup case-insensitive", "SELECT * FROM t UNION SELECT * FROM T", []string{"t"}},
		{"subquery", "SELECT * FROM (SELECT * FROM inner_t) sub", []string{"inner_t"}},
		{"table function", "SELECT * FROM read_csv('x.csv')", nil},
		{"string literal", "SELECT 'FROM fake' AS x FROM real_t", []string{"real_t"}},
		{"line comment", "SELECT 1 -- FROM fake\nFROM real_t", []string{"real_t"}},
		{"block comment", "SELECT 1 /* FROM fake */ FROM real_t", []string{"real_t"}},
		{"cte", "WITH w AS (SELECT * FROM base) SELECT * FROM w", []string{"base"}},
		{"cte column list", "WITH x(a) AS (SELECT total FROM sales_daily) SELECT SUM(a) FROM x", []string{"sales_daily"}},
		{"second cte column list", "WITH w AS (SELECT 1), x(a, b) AS (SELECT * FROM base) SELECT * FROM w JOIN x ON true", []string{"base"}},
		{"function alias is not a cte", "SELECT a, count(b) AS n FROM t", []string{"t"}},
		{"extract", "SELECT EXTRACT(month FROM d) FROM t", []string{"t"}},
		{"trim", "SELECT TRIM(BOTH 'x' FROM s) FROM t", []string{"t"}},
		{"is distinct from", "SELECT * FROM t WHERE a IS DISTINCT FROM b", []string{"t"}},
		{"no from", "SELECT 42", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTableReferences(tt.query))
		})
	}
}
