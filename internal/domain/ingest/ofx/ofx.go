// Package ofx parses bank and credit-card statement exports in either OFX
// dialect (the SGML-like v1 and the XML v2) into the canonical table. Both
// dialects are normalized into one tree before extraction, so a statement
// produces identical rows regardless of the dialect it arrived in.
package ofx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// Dialect identifies which historical OFX flavor a file used.
type Dialect string

const (
	DialectSGML Dialect = "sgml"
	DialectXML  Dialect = "xml"
)

// Columns of the canonical transaction table, in output order.
var Columns = []string{"date", "amount", "description", "reference", "type", "check_number"}

// descriptionSeparator joins the payee name and memo fields.
const descriptionSeparator = " - "

// Metadata carries non-blocking facts about a successful parse. It is
// descriptive only: the canonical table never depends on it.
type Metadata struct {
	Dialect             Dialect
	Encoding            string
	Currency            string
	AccountID           string // masked: only the last 4 characters survive
	AccountType         string
	StatementStart      string
	StatementEnd        string
	LedgerBalance       *decimal.Decimal
	TransactionCount    int
	DuplicateReferences []string
}

// Parse turns raw OFX/QBO bytes into the canonical transaction table. The
// pipeline order is fixed: security gate, encoding resolution, dialect
// detection, root-tag validation, normalization, tree parse, extraction.
// The first unrecoverable condition wins; there is no error collection.
func Parse(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	if err := checkForbiddenMarkup(data); err != nil {
		return nil, nil, err
	}

	text, encodingName, err := resolveEncoding(data)
	if err != nil {
		return nil, nil, err
	}

	dialect := detectDialect(text)

	markup, err := cutFromRoot(text)
	if err != nil {
		return nil, nil, err
	}
	if dialect == DialectSGML {
		markup = normalizeSGML(markup)
	}

	root, err := parseTree(markup)
	if err != nil {
		return nil, nil, err
	}

	rows, duplicates := extractTransactions(root)
	if len(rows) == 0 {
		return nil, nil, ingest.NewError(ingest.KindNoDataExtracted,
			fmt.Sprintf("%s parses but contains no transactions", filename),
			"check that the export covers a date range with account activity")
	}

	meta := buildMetadata(root, dialect, encodingName, len(rows), duplicates)

	table := &ingest.CanonicalTable{Columns: Columns, Rows: rows}
	return table, meta, nil
}

// extractTransactions walks the bank-statement and credit-card-statement
// subtrees for STMTTRN nodes. A transaction reachable through more than one
// search path is counted once, keyed by node identity.
func extractTransactions(root *node) ([]ingest.Row, []string) {
	statements := root.findAll("STMTRS")
	statements = append(statements, root.findAll("CCSTMTRS")...)

	seen := make(map[*node]struct{})
	refCounts := make(map[string]int)
	var refOrder []string
	var rows []ingest.Row

	for _, stmt := range statements {
		for _, txn := range stmt.findAll("STMTTRN") {
			if _, dup := seen[txn]; dup {
				continue
			}
			seen[txn] = struct{}{}

			ref := txn.childText("FITID")
			if ref != "" {
				if refCounts[ref] == 1 {
					refOrder = append(refOrder, ref)
				}
				refCounts[ref]++
			}

			rows = append(rows, ingest.Row{
				"date":         NormalizeDate(txn.childText("DTPOSTED")),
				"amount":       amountValue(txn.childText("TRNAMT")),
				"description":  joinDescription(txn.childText("NAME"), txn.childText("MEMO")),
				"reference":    ref,
				"type":         txn.childText("TRNTYPE"),
				"check_number": txn.childText("CHECKNUM"),
			})
		}
	}

	var duplicates []string
	for _, ref := range refOrder {
		if refCounts[ref] > 1 {
			duplicates = append(duplicates, ref)
		}
	}
	return rows, duplicates
}

func buildMetadata(root *node, dialect Dialect, encodingName string, count int, duplicates []string) *Metadata {
	meta := &Metadata{
		Dialect:             dialect,
		Encoding:            encodingName,
		Currency:            money.NormalizeCurrency(root.childText("CURDEF")),
		TransactionCount:    count,
		DuplicateReferences: duplicates,
	}

	if acct := root.first("BANKACCTFROM"); acct != nil {
		meta.AccountID = MaskAccountID(acct.childText("ACCTID"))
		meta.AccountType = strings.ToLower(acct.childText("ACCTTYPE"))
	} else if acct := root.first("CCACCTFROM"); acct != nil {
		meta.AccountID = MaskAccountID(acct.childText("ACCTID"))
	}
	if meta.AccountType == "" && root.first("CCSTMTRS") != nil {
		meta.AccountType = "credit card"
	}

	if list := root.first("BANKTRANLIST"); list != nil {
		meta.StatementStart = NormalizeDate(list.childText("DTSTART"))
		meta.StatementEnd = NormalizeDate(list.childText("DTEND"))
	}

	if bal := root.first("LEDGERBAL"); bal != nil {
		if d, ok := money.ParseAmount(bal.childText("BALAMT")); ok {
			meta.LedgerBalance = &d
		}
	}

	return meta
}

// MaskAccountID keeps only the last 4 characters of an account identifier,
// replacing the rest with asterisks.
func MaskAccountID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}

// NormalizeDate converts an OFX date stamp (YYYYMMDD, optionally followed
// by a time component and a bracketed timezone suffix) into ISO YYYY-MM-DD.
// Anything that fails validation is returned unchanged; a bad date never
// aborts a parse.
func NormalizeDate(s string) string {
	raw := strings.TrimSpace(s)
	v := raw
	if i := strings.Index(v, "["); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return raw
	}
	digits := v[:8]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return raw
		}
	}
	month, _ := strconv.Atoi(digits[4:6])
	day, _ := strconv.Atoi(digits[6:8])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return raw
	}
	return digits[0:4] + "-" + digits[4:6] + "-" + digits[6:8]
}

func amountValue(s string) any {
	if d, ok := money.ParseAmount(s); ok {
		return d
	}
	return nil
}

func joinDescription(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, descriptionSeparator)
}
