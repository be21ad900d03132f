// Package ingest defines the shared contracts of the document ingestion
// pipeline: the canonical table every parser converges on, and the error
// taxonomy parsers raise through.
package ingest

import (
	"strings"

	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// Row maps a column name to a cell value. A value is a string, a
// decimal.Decimal for cells recognized as numeric, or nil for empty cells.
type Row map[string]any

// CanonicalTable is the single output shape all parsers produce: an ordered
// list of column names plus the rows keyed by those names. Column names may
// repeat structurally; Columns preserves the source order and is the
// authoritative record of the table's shape.
type CanonicalTable struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the table holds no data rows.
func (t *CanonicalTable) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// CellValue converts a raw cell string into its canonical representation:
// nil for blank cells, decimal for anything that parses as an amount
// (currency symbols, thousands separators and accounting negatives are
// tolerated), the trimmed string otherwise.
func CellValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if d, ok := money.ParseAmount(s); ok {
		return d
	}
	return s
}
