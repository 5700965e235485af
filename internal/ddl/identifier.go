package ddl

import (
	"fmt"
	"regexp"
	"strings"

	"duckstack/internal/domain"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// ValidateIdentifier checks that name is a plain SQL identifier:
//   - Non-empty
//   - At most 128 characters
//   - Matches [a-zA-Z_][a-zA-Z0-9_]*
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, doubling any
// embedded double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteRelation quotes each dot-separated part of a table name, so
// main.sales_daily becomes "main"."sales_daily".
func QuoteRelation(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// QuoteLiteral wraps a string value in single quotes, doubling any embedded
// single quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// columnRef quotes plain column names and passes expressions such as
// date_trunc('week', sale_date) through unchanged.
func columnRef(col string) string {
	if identifierRe.MatchString(col) {
		return QuoteIdentifier(col)
	}
	return col
}

var columnTypes = map[domain.DataType]string{
	domain.DataTypeInteger:   "BIGINT",
	domain.DataTypeFloat:     "DOUBLE",
	domain.DataTypeString:    "VARCHAR",
	domain.DataTypeTimestamp: "TIMESTAMP",
	domain.DataTypeBoolean:   "BOOLEAN",
	domain.DataTypeDate:      "DATE",
}

// ColumnType maps a declared data type to its DuckDB type name.
func ColumnType(t domain.DataType) (string, error) {
	if s, ok := columnTypes[domain.DataType(strings.ToLower(string(t)))]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unsupported data type %q", t)
}
