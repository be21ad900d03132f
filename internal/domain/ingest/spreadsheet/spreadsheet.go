// Package spreadsheet provides the thin canonical-table adapters over
// mature spreadsheet libraries: CSV and TSV text exports, modern XLSX
// workbooks and legacy XLS workbooks. These readers carry none of the
// dialect logic the dedicated parsers need; they only reshape rows.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
)

// Metadata carries non-blocking facts about a spreadsheet read.
type Metadata struct {
	SheetName string
	Delimiter rune
	RowCount  int
}

// ParseCSV reads a comma-separated export into the canonical table using
// the header row as column names.
func ParseCSV(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))

	header, err := readHeader(data, ',')
	if err != nil {
		return nil, nil, structural(filename, err)
	}

	maps, err := gocsv.CSVToMaps(bytes.NewReader(data))
	if err != nil {
		return nil, nil, structural(filename, err)
	}
	if len(maps) == 0 {
		return nil, nil, noData(filename)
	}

	table := &ingest.CanonicalTable{Columns: header, Rows: make([]ingest.Row, 0, len(maps))}
	for _, m := range maps {
		row := make(ingest.Row, len(header))
		for k, v := range m {
			row[k] = ingest.CellValue(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, &Metadata{Delimiter: ',', RowCount: len(table.Rows)}, nil
}

// ParseTSV reads a tab-separated export.
func ParseTSV(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, structural(filename, err)
	}
	if len(records) < 2 {
		return nil, nil, noData(filename)
	}

	table := tableFromRows(records[0], records[1:])
	return table, &Metadata{Delimiter: '\t', RowCount: len(table.Rows)}, nil
}

// ParseXLSX reads the first non-empty sheet of a modern Excel workbook.
func ParseXLSX(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, structural(filename, err)
	}
	defer f.Close()

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) < 2 {
			continue
		}
		table := tableFromRows(rows[0], rows[1:])
		return table, &Metadata{SheetName: sheetName, RowCount: len(table.Rows)}, nil
	}
	return nil, nil, noData(filename)
}

// ParseXLS reads the first sheet of a legacy 97-2003 Excel workbook.
func ParseXLS(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	workbook, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, structural(filename, err)
	}

	sheet, err := workbook.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, nil, noData(filename)
	}

	var records [][]string
	for _, xlsRow := range sheet.GetRows() {
		var cells []string
		for _, col := range xlsRow.GetCols() {
			cells = append(cells, col.GetString())
		}
		records = append(records, cells)
	}
	if len(records) < 2 {
		return nil, nil, noData(filename)
	}

	table := tableFromRows(records[0], records[1:])
	return table, &Metadata{SheetName: sheet.GetName(), RowCount: len(table.Rows)}, nil
}

// readHeader parses just the header row so column order survives the
// map-based row decoding.
func readHeader(data []byte, delimiter rune) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	return header, nil
}

func tableFromRows(header []string, data [][]string) *ingest.CanonicalTable {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	table := &ingest.CanonicalTable{Columns: columns, Rows: make([]ingest.Row, 0, len(data))}
	for _, raw := range data {
		row := make(ingest.Row, len(columns))
		for i, col := range columns {
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

func structural(filename string, err error) error {
	return ingest.NewError(ingest.KindStructuralParseFailure,
		fmt.Sprintf("%s could not be read: %v", filename, err),
		"re-export the file from the source system and upload it again")
}

func noData(filename string) error {
	return ingest.NewError(ingest.KindNoDataExtracted,
		fmt.Sprintf("%s contains no data rows", filename),
		"check that the export includes at least a header row and one data row")
}
