package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duckstack/internal/domain"
)

func TestCreateTableAs(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		query   string
		want    string
		wantErr string
	}{
		{
			name:  "valid",
			table: "sales_daily",
			query: "SELECT 1",
			want:  `CREATE OR REPLACE TABLE "sales_daily" AS SELECT 1`,
		},
		{
			name:  "trailing_semicolon",
			table: "t",
			query: "SELECT 1;\n",
			want:  `CREATE OR REPLACE TABLE "t" AS SELECT 1`,
		},
		{
			name:  "qualified",
			table: "main.t",
			query: "SELECT 1",
			want:  `CREATE OR REPLACE TABLE "main"."t" AS SELECT 1`,
		},
		{name: "empty_table", query: "SELECT 1", wantErr: "table name is required"},
		{name: "empty_query", table: "t", query: " ; ", wantErr: "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CreateTableAs(tt.table, tt.query)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	tests := []struct {
		name     string
		location string
		format   string
		want     string
		wantErr  string
	}{
		{name: "csv_inferred", location: "data/raw.csv", want: "SELECT * FROM read_csv_auto('data/raw.csv')"},
		{name: "parquet_inferred", location: "s3://b/raw.parquet", want: "SELECT * FROM read_parquet('s3://b/raw.parquet')"},
		{name: "json_explicit", location: "events", format: "json", want: "SELECT * FROM read_json_auto('events')"},
		{name: "quote_escaped", location: "it's.csv", want: "SELECT * FROM read_csv_auto('it''s.csv')"},
		{name: "unknown_ext", location: "raw.xlsx", wantErr: "unsupported file format"},
		{name: "empty", wantErr: "location is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFile(tt.location, tt.format)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampleData(t *testing.T) {
	schema := domain.Schema{Columns: []domain.Column{
		{Name: "sale_date", Type: domain.DataTypeTimestamp},
		{Name: "amount", Type: domain.DataTypeFloat},
		{Name: "region", Type: domain.DataTypeString},
	}}

	got, err := SampleData(schema, 216)
	require.NoError(t, err)
	assert.Contains(t, got, `TIMESTAMP '2024-01-01 00:00:00' + to_hours(i) AS "sale_date"`)
	assert.Contains(t, got, `AS "amount"`)
	assert.Contains(t, got, `'region_' || CAST(i % 10 AS VARCHAR) AS "region"`)
	assert.Contains(t, got, "FROM range(216) AS r(i)")

	_, err = SampleData(domain.Schema{}, 10)
	assert.ErrorContains(t, err, "no columns")

	_, err = SampleData(schema, 0)
	assert.ErrorContains(t, err, "must be positive")

	_, err = SampleData(domain.Schema{Columns: []domain.Column{{Name: "x", Type: "blob"}}}, 1)
	assert.ErrorContains(t, err, `column "x"`)
}

func TestComposeSelect(t *testing.T) {
	tests := []struct {
		name    string
		t       domain.Transformation
		want    string
		wantErr string
	}{
		{
			name: "explicit_sql_wins",
			t: domain.Transformation{
				Name: "daily", Inputs: []string{"raw_sales"},
				SQL:     "SELECT * FROM raw_sales;",
				GroupBy: []string{"ignored"},
			},
			want: "SELECT * FROM raw_sales",
		},
		{
			name: "passthrough",
			t:    domain.Transformation{Name: "copy", Inputs: []string{"raw_sales"}},
			want: `SELECT * FROM "raw_sales"`,
		},
		{
			name: "group_by_aggregations",
			t: domain.Transformation{
				Name:    "daily",
				Inputs:  []string{"raw_sales"},
				GroupBy: []string{"date_trunc('day', sale_date)"},
				Aggregations: []domain.Aggregation{
					{Function: "sum", Column: "amount", Alias: "daily_sales"},
					{Function: "COUNT", Column: "*"},
				},
			},
			want: `SELECT date_trunc('day', sale_date), SUM("amount") AS "daily_sales", COUNT(*) AS "count" ` +
				`FROM "raw_sales" GROUP BY date_trunc('day', sale_date)`,
		},
		{
			name: "filters_and_join",
			t: domain.Transformation{
				Name:   "enriched",
				Inputs: []string{"sales", "customers"},
				Joins:  []domain.Join{{Input: "customers", On: "sales.customer_id = customers.id", Type: "left"}},
				Filters: []domain.Filter{
					{Column: "amount", Operator: ">", Value: "10.5"},
					{Column: "region", Operator: "=", Value: "it's"},
				},
			},
			want: `SELECT * FROM "sales" LEFT JOIN "customers" ON sales.customer_id = customers.id ` +
				`WHERE "amount" > 10.5 AND "region" = 'it''s'`,
		},
		{
			name:    "no_inputs",
			t:       domain.Transformation{Name: "x"},
			wantErr: "neither SQL nor inputs",
		},
		{
			name: "bad_function",
			t: domain.Transformation{Name: "x", Inputs: []string{"a"},
				Aggregations: []domain.Aggregation{{Function: "median", Column: "v"}}},
			wantErr: "unsupported aggregation function",
		},
		{
			name: "sum_star",
			t: domain.Transformation{Name: "x", Inputs: []string{"a"},
				Aggregations: []domain.Aggregation{{Function: "sum", Column: "*"}}},
			wantErr: "sum(*) is not allowed",
		},
		{
			name: "bad_operator",
			t: domain.Transformation{Name: "x", Inputs: []string{"a"},
				Filters: []domain.Filter{{Column: "v", Operator: "LIKE", Value: "a"}}},
			wantErr: "unsupported filter operator",
		},
		{
			name: "bad_join",
			t: domain.Transformation{Name: "x", Inputs: []string{"a"},
				Joins: []domain.Join{{Input: "b", On: "a.id = b.id", Type: "cross"}}},
			wantErr: "unsupported join type",
		},
		{
			name: "join_without_condition",
			t: domain.Transformation{Name: "x", Inputs: []string{"a"},
				Joins: []domain.Join{{Input: "b"}}},
			wantErr: "needs a condition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComposeSelect(tt.t)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
