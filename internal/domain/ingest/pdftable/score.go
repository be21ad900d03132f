package pdftable

import (
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// stitch merges per-page tables into one header plus data rows. With one
// table its first row is the header. With several, subsequent tables whose
// first row repeats the reference header (the classic multi-page
// continuation pattern) contribute their remaining rows; if any table's
// first row differs, stitching is abandoned and the single largest table by
// row count wins instead.
func stitch(tables [][][]string) ([]string, [][]string, bool) {
	if len(tables) == 1 {
		return tables[0][0], tables[0][1:], false
	}

	header := tables[0][0]
	data := append([][]string{}, tables[0][1:]...)
	for _, t := range tables[1:] {
		if !headerMatches(header, t[0]) {
			largest := tables[0]
			for _, c := range tables[1:] {
				if len(c) > len(largest) {
					largest = c
				}
			}
			return largest[0], largest[1:], false
		}
		data = append(data, t[1:]...)
	}
	return header, data, true
}

func headerMatches(reference, candidate []string) bool {
	if len(reference) != len(candidate) {
		return false
	}
	for i := range reference {
		if !strings.EqualFold(strings.TrimSpace(reference[i]), strings.TrimSpace(candidate[i])) {
			return false
		}
	}
	return true
}

// headerConfidence is the fraction of header cells that are non-empty and
// not themselves numeric-looking.
func headerConfidence(header []string) float64 {
	if len(header) == 0 {
		return 0
	}
	good := 0
	for _, cell := range header {
		cell = strings.TrimSpace(cell)
		if cell != "" && !money.IsNumeric(cell) {
			good++
		}
	}
	return float64(good) / float64(len(header))
}

// numericDensity is the fraction of all data cells that parse as a number
// after stripping thousands separators, currency symbols and
// accounting-style parenthetical negatives.
func numericDensity(rows [][]string) float64 {
	total, numeric := 0, 0
	for _, row := range rows {
		for _, cell := range row {
			total++
			if money.IsNumeric(cell) {
				numeric++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(numeric) / float64(total)
}

// rowConsistency is the fraction of data rows whose cell count exactly
// matches the header's.
func rowConsistency(header []string, rows [][]string) float64 {
	if len(rows) == 0 {
		return 0
	}
	matching := 0
	for _, row := range rows {
		if len(row) == len(header) {
			matching++
		}
	}
	return float64(matching) / float64(len(rows))
}

// composite is the fixed weighted average gating extraction quality.
func composite(m Metadata) float64 {
	return 0.4*m.HeaderConfidence + 0.3*m.NumericDensity + 0.3*m.RowConsistency
}

// qualityHints explains a below-threshold score in terms of whichever
// metric is weak, falling back to one generic hint when none is.
func qualityHints(m Metadata) []string {
	var hints []string
	if m.HeaderConfidence < weakMetric {
		hints = append(hints, "Column headers could not be identified reliably. Export the data as CSV or Excel from the source system instead.")
	}
	if m.NumericDensity < weakMetric {
		hints = append(hints, "Very little numeric data was recognized; the document may be a scanned image, which cannot be read.")
	}
	if m.RowConsistency < weakMetric {
		hints = append(hints, "Row widths are inconsistent; the table may use merged cells or a complex layout. A CSV or Excel export will read cleanly.")
	}
	if len(hints) == 0 {
		hints = append(hints, "The extracted table scored below the confidence threshold. Export the data as CSV or Excel from the source system for a reliable import.")
	}
	return hints
}

// buildTable converts the stitched rows into the canonical shape. Rows
// wider than the header keep only the named cells; shorter rows leave the
// missing columns unset.
func buildTable(header []string, rows [][]string) *ingest.CanonicalTable {
	table := &ingest.CanonicalTable{Columns: header, Rows: make([]ingest.Row, 0, len(rows))}
	for _, raw := range rows {
		row := make(ingest.Row, len(header))
		for i, col := range header {
			if i < len(raw) {
				row[col] = ingest.CellValue(raw[i])
			} else {
				row[col] = nil
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
