package iif

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
)

func iifFile(lines ...[]string) []byte {
	rows := make([]string, len(lines))
	for i, cells := range lines {
		rows[i] = strings.Join(cells, "\t")
	}
	return []byte(strings.Join(rows, "\r\n") + "\r\n")
}

func validExport() []byte {
	return iifFile(
		[]string{"!HDR", "PROD", "VER", "REL"},
		[]string{"HDR", "QuickBooks Pro", "Version 2005", "Release R5"},
		[]string{"!ACCNT", "NAME", "ACCNTTYPE"},
		[]string{"ACCNT", "Checking", "BANK"},
		[]string{"ACCNT", "Expenses:Office", "EXP"},
		[]string{"!TRNS", "TRNSID", "TRNSTYPE", "DATE", "ACCNT", "NAME", "AMOUNT", "DOCNUM", "MEMO"},
		[]string{"!SPL", "SPLID", "TRNSTYPE", "DATE", "ACCNT", "NAME", "AMOUNT", "DOCNUM", "MEMO"},
		[]string{"!ENDTRNS"},
		[]string{"TRNS", "1", "CHECK", "3/15/05", "Checking", "Acme Corp", "-100.00", "1001", "Widgets"},
		[]string{"SPL", "2", "CHECK", "3/15/05", "Expenses:Office", "Acme Corp", "100.00", "1001", "Widgets"},
		[]string{"ENDTRNS"},
		[]string{"TRNS", "3", "DEPOSIT", "12/31/85", "Checking", "Client", "250.00", "1002", "Invoice 12"},
		[]string{"ENDTRNS"},
	)
}

func TestParse_ValidExport(t *testing.T) {
	table, meta, err := Parse(validExport(), "export.iif")
	require.NoError(t, err)

	assert.Equal(t, Columns, table.Columns)
	require.Len(t, table.Rows, 3)

	trns := table.Rows[0]
	assert.Equal(t, "2005-03-15", trns["date"])
	assert.Equal(t, "Checking", trns["account"])
	assert.True(t, trns["amount"].(decimal.Decimal).Equal(decimal.RequireFromString("-100")))
	assert.Equal(t, "Widgets", trns["description"])
	assert.Equal(t, "1001", trns["reference"])
	assert.Equal(t, "CHECK", trns["type"])
	assert.Equal(t, "Acme Corp", trns["payee"])
	assert.Equal(t, "TRNS", trns["row_kind"])
	assert.Equal(t, 1, trns["block"])

	spl := table.Rows[1]
	assert.Equal(t, "SPL", spl["row_kind"])
	assert.Equal(t, 1, spl["block"], "split attaches to the open block")

	second := table.Rows[2]
	assert.Equal(t, "1985-12-31", second["date"])
	assert.Equal(t, 2, second["block"])

	assert.Equal(t, []string{"ACCNT", "HDR"}, meta.Sections)
	assert.Equal(t, 2, meta.BlockCount)
	assert.Equal(t, 3, meta.TransactionRows)
	assert.Equal(t, 2, meta.AccountRows)
	assert.Equal(t, "1985-12-31", meta.EarliestDate)
	assert.Equal(t, "2005-03-15", meta.LatestDate)
	assert.Equal(t, []string{"1001"}, meta.DuplicateReferences)
	assert.Equal(t, 0, meta.MalformedRows)
	assert.Equal(t, "utf-8", meta.Encoding)
}

func TestParse_SchemaIsolation(t *testing.T) {
	// The SPL schema is wider than the TRNS schema; each kind validates
	// against its own schema only.
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"!SPL", "SPLID", "TRNSTYPE", "DATE", "ACCNT", "NAME", "AMOUNT", "DOCNUM", "MEMO"},
		[]string{"TRNS", "CHECK", "1/2/24", "Checking", "-10.00"},
		[]string{"SPL", "1", "CHECK", "1/2/24", "Expenses", "Acme", "10.00", "55", "ok split"},
		[]string{"SPL", "short", "row"},
		[]string{"ENDTRNS"},
	)

	table, meta, err := Parse(data, "mixed.iif")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2, "the malformed split is dropped, not fatal")
	assert.Equal(t, 1, meta.MalformedRows)
	assert.Equal(t, "ok split", table.Rows[1]["description"])
}

func TestParse_RowBeforeSchema(t *testing.T) {
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"SPL", "CHECK", "1/2/24", "Expenses", "10.00"},
		[]string{"TRNS", "CHECK", "1/2/24", "Checking", "-10.00"},
		[]string{"ENDTRNS"},
	)
	table, meta, err := Parse(data, "early.iif")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1, "split arriving before any !SPL schema is dropped")
	assert.Equal(t, 1, meta.MalformedRows)
}

func TestParse_OrphanSplitBlockZero(t *testing.T) {
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"!SPL", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"SPL", "CHECK", "1/2/24", "Expenses", "10.00"},
		[]string{"TRNS", "CHECK", "1/3/24", "Checking", "-10.00"},
		[]string{"ENDTRNS"},
	)
	table, _, err := Parse(data, "orphan.iif")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 0, table.Rows[0]["block"], "orphan split is kept, tagged ungrouped")
	assert.Equal(t, 1, table.Rows[1]["block"])
}

func TestParse_BadAmountKeepsRow(t *testing.T) {
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"TRNS", "CHECK", "1/2/24", "Checking", "not-a-number"},
		[]string{"ENDTRNS"},
	)
	table, _, err := Parse(data, "badamount.iif")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0]["amount"], "unparseable amount yields a null amount, not a dropped row")
}

func TestParse_MarkerMissing(t *testing.T) {
	data := iifFile(
		[]string{"!CUST", "NAME", "BADDR1"},
		[]string{"CUST", "Acme Corp", "1 Main St"},
	)
	_, _, err := Parse(data, "customers.iif")
	require.Error(t, err)
	assert.True(t, ingest.IsKind(err, ingest.KindFormatMarkerMissing))
}

func TestParse_ZeroRetainedRows(t *testing.T) {
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT"},
		[]string{"TRNS", "only", "two"},
	)
	_, _, err := Parse(data, "hollow.iif")
	require.Error(t, err)
	assert.True(t, ingest.IsKind(err, ingest.KindNoDataExtracted))
	assert.Contains(t, err.Error(), "QuickBooks")
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"3/15/05", "2005-03-15"},
		{"3/15/49", "2049-03-15"},
		{"3/15/50", "1950-03-15"}, // pivot is exact at 50
		{"12/31/85", "1985-12-31"},
		{"03/15/2005", "2005-03-15"},
		{"13/1/05", "13/1/05"}, // month out of range
		{"1/32/05", "1/32/05"}, // day out of range
		{"2005-03-15", "2005-03-15"},
		{"notadate", "notadate"},
		{"1/2/205", "1/2/205"}, // 3-digit year
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDate(tt.input), "input %q", tt.input)
	}
}

func TestParse_Windows1252Fallback(t *testing.T) {
	data := iifFile(
		[]string{"!TRNS", "TRNSTYPE", "DATE", "ACCNT", "AMOUNT", "MEMO"},
		[]string{"TRNS", "CHECK", "1/2/24", "Checking", "-10.00", "Caf\xe9"},
		[]string{"ENDTRNS"},
	)
	table, meta, err := Parse(data, "latin.iif")
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", meta.Encoding)
	assert.Equal(t, "Café", table.Rows[0]["description"])
}
