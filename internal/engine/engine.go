// Package engine materializes sources and transformation outputs as DuckDB
// tables and evaluates serving-layer queries against them.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"duckstack/internal/ddl"
	"duckstack/internal/domain"
)

// DefaultSampleRows is the number of generated rows for a source without a
// location: nine days of hourly data.
const DefaultSampleRows = 216

// Compile-time checks.
var (
	_ domain.Ingestor          = (*Engine)(nil)
	_ domain.TransformExecutor = (*Engine)(nil)
)

// Open opens a DuckDB database. An empty path is an in-memory database that
// lives as long as the returned *sql.DB.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return db, nil
}

// Engine runs ingestion and transformation statements on a DuckDB database.
type Engine struct {
	db         *sql.DB
	logger     *slog.Logger
	sampleRows int
}

// New wraps db. sampleRows below 1 selects DefaultSampleRows.
func New(db *sql.DB, logger *slog.Logger, sampleRows int) *Engine {
	if sampleRows < 1 {
		sampleRows = DefaultSampleRows
	}
	return &Engine{db: db, logger: logger, sampleRows: sampleRows}
}

// DB returns the underlying database.
func (e *Engine) DB() *sql.DB { return e.db }

// Materialize creates or replaces the source table, reading Location when
// set and generating sample rows from the schema otherwise.
func (e *Engine) Materialize(ctx context.Context, src domain.Source) error {
	var query string
	var err error
	if src.Location != "" {
		query, err = ddl.ReadFile(src.Location, src.Format)
	} else {
		query, err = ddl.SampleData(src.Schema, e.sampleRows)
	}
	if err != nil {
		return fmt.Errorf("source %q: %w", src.Name, err)
	}

	stmt, err := ddl.CreateTableAs(src.Name, query)
	if err != nil {
		return fmt.Errorf("source %q: %w", src.Name, err)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("materialize source %q: %w", src.Name, err)
	}

	rows, err := e.RowCount(ctx, src.Name)
	if err != nil {
		return err
	}
	e.logger.Info("source materialized", "source", src.Name, "rows", rows, "location", src.Location)
	return nil
}

// Execute creates or replaces the transformation output table.
func (e *Engine) Execute(ctx context.Context, t domain.Transformation) error {
	query, err := ddl.ComposeSelect(t)
	if err != nil {
		return err
	}
	stmt, err := ddl.CreateTableAs(t.Output, query)
	if err != nil {
		return fmt.Errorf("transformation %q: %w", t.Name, err)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("execute transformation %q: %w", t.Name, err)
	}
	e.logger.Info("transformation executed", "transformation", t.Name, "output", t.Output)
	return nil
}

// RowCount returns the number of rows in table.
func (e *Engine) RowCount(ctx context.Context, table string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + ddl.QuoteRelation(table)
	if err := e.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %q: %w", table, err)
	}
	return n, nil
}

// QueryScalar returns the first column of the first row of query, converted
// to a plain Go value (int64, float64, string, bool, or nil). A query that
// returns no rows yields nil.
func (e *Engine) QueryScalar(ctx context.Context, query string) (any, error) {
	var v any
	err := e.db.QueryRowContext(ctx, query).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query scalar: %w", err)
	}
	return normalize(v), nil
}

// normalize converts driver values that do not serialize cleanly.
func normalize(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case interface{ Float64() float64 }:
		// DECIMAL results such as AVG over integers.
		return x.Float64()
	case time.Time:
		return x.Format(time.RFC3339)
	case []byte:
		return string(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
