package pdftable

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementPage(rows int) [][]string {
	page := [][]string{{"Date", "Description", "Amount"}}
	for i := 0; i < rows; i++ {
		page = append(page, []string{"2024-01-15", "Payment", "-42.50"})
	}
	return page
}

func TestStitch_RepeatedHeaders(t *testing.T) {
	header, data, stitched := stitch([][][]string{
		statementPage(10),
		statementPage(10),
	})

	assert.True(t, stitched)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, header)
	assert.Len(t, data, 20, "continuation headers are consumed, not kept as data")
}

func TestStitch_CaseInsensitiveHeaderMatch(t *testing.T) {
	first := [][]string{{"Date", "Amount"}, {"2024-01-01", "10.00"}}
	second := [][]string{{" DATE ", "amount"}, {"2024-01-02", "20.00"}}

	_, data, stitched := stitch([][][]string{first, second})
	assert.True(t, stitched)
	assert.Len(t, data, 2)
}

func TestStitch_MismatchFallsBackToLargest(t *testing.T) {
	small := [][]string{{"Date", "Amount"}, {"2024-01-01", "10.00"}}
	large := [][]string{
		{"Posting Date", "Payee", "Debit", "Credit"},
		{"2024-02-01", "Acme", "5.00", ""},
		{"2024-02-02", "Acme", "6.00", ""},
		{"2024-02-03", "Acme", "7.00", ""},
	}

	header, data, stitched := stitch([][][]string{small, large})
	assert.False(t, stitched)
	assert.Equal(t, []string{"Posting Date", "Payee", "Debit", "Credit"}, header)
	assert.Len(t, data, 3)
}

func TestStitch_SingleTable(t *testing.T) {
	header, data, stitched := stitch([][][]string{statementPage(4)})
	assert.False(t, stitched)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, header)
	assert.Len(t, data, 4)
}

func TestHeaderConfidence(t *testing.T) {
	assert.Equal(t, 1.0, headerConfidence([]string{"Date", "Payee", "Amount"}))
	assert.Equal(t, 0.5, headerConfidence([]string{"Date", "1,234.00"}))
	assert.Equal(t, 0.0, headerConfidence([]string{"", "  "}))
	assert.Equal(t, 0.0, headerConfidence(nil))
}

func TestNumericDensity(t *testing.T) {
	rows := [][]string{
		{"2024-01-01", "$1,234.56"},
		{"groceries", "(58.00)"},
	}
	assert.Equal(t, 0.5, numericDensity(rows), "currency symbols and parenthetical negatives still count as numeric")
	assert.Equal(t, 0.0, numericDensity(nil))
}

func TestRowConsistency(t *testing.T) {
	header := []string{"a", "b", "c"}
	rows := [][]string{
		{"1", "2", "3"},
		{"1", "2"},
		{"1", "2", "3", "4"},
		{"1", "2", "3"},
	}
	assert.Equal(t, 0.5, rowConsistency(header, rows))
	assert.Equal(t, 0.0, rowConsistency(header, nil))
}

func TestComposite(t *testing.T) {
	m := Metadata{HeaderConfidence: 1.0, NumericDensity: 0.5, RowConsistency: 1.0}
	assert.InDelta(t, 0.85, composite(m), 1e-9)

	m = Metadata{HeaderConfidence: 0.0, NumericDensity: 1.0, RowConsistency: 1.0}
	assert.InDelta(t, 0.6, composite(m), 1e-9)
}

func TestQualityHints(t *testing.T) {
	t.Run("each weak metric names itself", func(t *testing.T) {
		hints := qualityHints(Metadata{HeaderConfidence: 0.2, NumericDensity: 0.9, RowConsistency: 0.9})
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0], "headers")

		hints = qualityHints(Metadata{HeaderConfidence: 0.9, NumericDensity: 0.2, RowConsistency: 0.9})
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0], "numeric")

		hints = qualityHints(Metadata{HeaderConfidence: 0.9, NumericDensity: 0.9, RowConsistency: 0.2})
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0], "Row widths")
	})

	t.Run("all weak stacks hints", func(t *testing.T) {
		hints := qualityHints(Metadata{})
		assert.Len(t, hints, 3)
	})

	t.Run("no weak metric gets the generic hint", func(t *testing.T) {
		hints := qualityHints(Metadata{HeaderConfidence: 0.55, NumericDensity: 0.55, RowConsistency: 0.55})
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0], "confidence threshold")
	})
}

func TestBuildTable(t *testing.T) {
	header := []string{"date", "amount", "memo"}
	rows := [][]string{
		{"2024-01-01", "1,234.56", "rent"},
		{"2024-01-02", "10.00"},
		{"2024-01-03", "x", "y", "overflow"},
	}

	table := buildTable(header, rows)
	assert.Equal(t, header, table.Columns)
	require.Len(t, table.Rows, 3)

	assert.True(t, table.Rows[0]["amount"].(decimal.Decimal).Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, "rent", table.Rows[0]["memo"])
	assert.Nil(t, table.Rows[1]["memo"], "short rows get nil for missing columns")
	assert.Equal(t, "y", table.Rows[2]["memo"], "overflow cells beyond the header are dropped")
	_, overflow := table.Rows[2]["overflow"]
	assert.False(t, overflow)
}
