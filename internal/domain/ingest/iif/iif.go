// Package iif parses QuickBooks IIF exports: tab-delimited files that
// declare their own column schemas inline through header lines. Parent
// transaction (TRNS) and split line (SPL) rows carry independent schemas
// that are tracked separately as the file is scanned top to bottom.
package iif

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// headWindow bounds how far the header-marker check looks.
const headWindow = 64 << 10

// Columns of the canonical transaction table, in output order. row_kind and
// block let downstream consumers rebuild parent/split relationships.
var Columns = []string{"date", "account", "amount", "description", "reference", "type", "payee", "row_kind", "block"}

// Record kinds whose data rows project into the canonical table.
const (
	kindTrns     = "TRNS"
	kindSplit    = "SPL"
	kindBlockEnd = "ENDTRNS"
	kindAccount  = "ACCNT"
)

// Metadata carries non-blocking facts about a successful parse.
type Metadata struct {
	Sections            []string // distinct header-section names seen, sorted
	BlockCount          int
	TransactionRows     int
	AccountRows         int
	EarliestDate        string
	LatestDate          string
	DuplicateReferences []string
	MalformedRows       int
	Encoding            string
}

// Parse turns raw IIF bytes into the canonical transaction table. Malformed
// rows are counted, never fatal; the parse fails hard only when the header
// marker is missing or no transaction row survives.
func Parse(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	text, encodingName, err := decode(data)
	if err != nil {
		return nil, nil, err
	}

	if err := checkMarker(text, filename); err != nil {
		return nil, nil, err
	}

	s := newScanner()
	for _, line := range strings.Split(text, "\n") {
		s.consume(strings.TrimRight(line, "\r"))
	}

	if len(s.rows) == 0 {
		return nil, nil, ingest.NewError(ingest.KindNoDataExtracted,
			fmt.Sprintf("%s contains IIF headers but no usable transaction rows", filename),
			`re-export from QuickBooks using "Transaction Detail" as the list type`)
	}

	meta := s.metadata(encodingName)
	table := &ingest.CanonicalTable{Columns: Columns, Rows: s.rows}
	return table, meta, nil
}

func decode(data []byte) (string, string, *ingest.Error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", ingest.NewError(ingest.KindEncodingExhausted,
			"file could not be decoded with any supported character set",
			"re-save the file as UTF-8 and upload it again")
	}
	return string(out), "windows-1252", nil
}

func checkMarker(text, filename string) *ingest.Error {
	head := text
	if len(head) > headWindow {
		head = head[:headWindow]
	}
	upper := strings.ToUpper(head)
	if !strings.Contains(upper, "!TRNS") && !strings.Contains(upper, "!SPL") {
		return ingest.NewError(ingest.KindFormatMarkerMissing,
			fmt.Sprintf("%s has no !TRNS or !SPL header line: this is not a transaction IIF export", filename),
			"export a transaction list (not an item or account list) from QuickBooks and upload that")
	}
	return nil
}

// scanner tracks per-kind schemas and block grouping while walking the file
// top to bottom.
type scanner struct {
	trnsSchema []string
	splSchema  []string

	sections  map[string]struct{}
	rows      []ingest.Row
	refCounts map[string]int
	refOrder  []string

	blockCount   int
	currentBlock int
	accountRows  int
	malformed    int
}

func newScanner() *scanner {
	return &scanner{
		sections:  make(map[string]struct{}),
		refCounts: make(map[string]int),
	}
}

func (s *scanner) consume(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	fields := strings.Split(line, "\t")
	first := strings.ToUpper(strings.TrimSpace(fields[0]))

	if strings.HasPrefix(first, "!") {
		s.consumeHeader(first[1:], fields)
		return
	}

	switch first {
	case kindTrns:
		s.blockCount++
		s.currentBlock = s.blockCount
		s.project(fields, s.trnsSchema, kindTrns, s.currentBlock)
	case kindSplit:
		// A split with no open block is still kept, tagged as block 0.
		s.project(fields, s.splSchema, kindSplit, s.currentBlock)
	case kindBlockEnd:
		s.currentBlock = 0
	case kindAccount:
		s.accountRows++
	default:
		// Data row for a list section (customers, classes, ...): recorded
		// by its header, ignored for the transaction projection.
	}
}

func (s *scanner) consumeHeader(name string, fields []string) {
	switch name {
	case kindTrns:
		s.trnsSchema = normalizeSchema(fields)
	case kindSplit:
		s.splSchema = normalizeSchema(fields)
	case kindBlockEnd:
		// Schema-less marker header, nothing to track.
	default:
		s.sections[name] = struct{}{}
	}
}

// project validates a data row against its kind's schema and maps it into
// the canonical shape. A column-count mismatch, or a row arriving before
// its schema, drops the row and bumps the malformed counter.
func (s *scanner) project(fields, schema []string, kind string, block int) {
	if len(schema) == 0 || len(fields) != len(schema) {
		s.malformed++
		return
	}

	get := func(column string) string {
		for i, name := range schema {
			if name == column {
				return strings.TrimSpace(fields[i])
			}
		}
		return ""
	}

	ref := get("DOCNUM")
	if ref != "" {
		if s.refCounts[ref] == 1 {
			s.refOrder = append(s.refOrder, ref)
		}
		s.refCounts[ref]++
	}

	var amount any
	if d, ok := money.ParseAmount(get("AMOUNT")); ok {
		amount = d
	}

	s.rows = append(s.rows, ingest.Row{
		"date":        NormalizeDate(get("DATE")),
		"account":     get("ACCNT"),
		"amount":      amount,
		"description": get("MEMO"),
		"reference":   ref,
		"type":        get("TRNSTYPE"),
		"payee":       get("NAME"),
		"row_kind":    kind,
		"block":       block,
	})
}

func (s *scanner) metadata(encodingName string) *Metadata {
	sections := make([]string, 0, len(s.sections))
	for name := range s.sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	var duplicates []string
	for _, ref := range s.refOrder {
		if s.refCounts[ref] > 1 {
			duplicates = append(duplicates, ref)
		}
	}

	earliest, latest := dateRange(s.rows)

	return &Metadata{
		Sections:            sections,
		BlockCount:          s.blockCount,
		TransactionRows:     len(s.rows),
		AccountRows:         s.accountRows,
		EarliestDate:        earliest,
		LatestDate:          latest,
		DuplicateReferences: duplicates,
		MalformedRows:       s.malformed,
		Encoding:            encodingName,
	}
}

// normalizeSchema upper-cases header cells and strips the leading "!" from
// the kind cell so schema lookups and data rows line up positionally.
func normalizeSchema(fields []string) []string {
	schema := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ToUpper(strings.TrimSpace(f))
		f = strings.TrimPrefix(f, "!")
		schema[i] = f
	}
	return schema
}

func dateRange(rows []ingest.Row) (string, string) {
	var earliest, latest string
	for _, row := range rows {
		d, _ := row["date"].(string)
		if !isISODate(d) {
			continue
		}
		if earliest == "" || d < earliest {
			earliest = d
		}
		if latest == "" || d > latest {
			latest = d
		}
	}
	return earliest, latest
}

func isISODate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeDate converts a slash-delimited month/day/year date into ISO
// YYYY-MM-DD. Two-digit years follow the fixed QuickBooks convention:
// 00-49 map to the 2000s, 50-99 to the 1900s. Invalid dates come back
// unchanged.
func NormalizeDate(s string) string {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return raw
	}

	month, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, errD := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearStr := strings.TrimSpace(parts[2])
	year, errY := strconv.Atoi(yearStr)
	if errM != nil || errD != nil || errY != nil {
		return raw
	}

	switch len(yearStr) {
	case 2:
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	case 4:
		// Already a full year.
	default:
		return raw
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return raw
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}
