// Package pdftable extracts the best candidate data table from a PDF and
// refuses to hand back low-confidence results silently. PDFs carry no
// dependable table structure, so every extraction is scored and anything
// below the confidence gate fails with actionable guidance instead of
// returning plausibly wrong data.
package pdftable

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
)

const (
	// MaxPages is the hard page-count ceiling for a full parse.
	MaxPages = 500
	// PreviewPages is how many pages a preview scan reads.
	PreviewPages = 3
	// ConfidenceThreshold gates whether an extraction is trustworthy.
	ConfidenceThreshold = 0.6

	// pageBudget is the per-page soft time budget. The check is cooperative
	// and post-hoc: a page is flagged after its extraction attempt returns,
	// so a call that hangs outright is flagged late, not interrupted.
	pageBudget = 5 * time.Second

	// weakMetric is the per-metric level below which a metric-specific
	// remediation hint is emitted.
	weakMetric = 0.5
)

var pdfMagic = []byte("%PDF-")

// Metadata describes one extraction run. All fields are diagnostic; the
// table never depends on them.
type Metadata struct {
	PageCount        int
	PagesScanned     int
	PagesDropped     int
	TablesFound      int
	Stitched         bool
	HeaderConfidence float64
	NumericDensity   float64
	RowConsistency   float64
	Confidence       float64
	Preview          bool
}

// Outcome is the no-raise result shape used by previews and by Parse.
// Failure is empty on a success-equivalent outcome; a low confidence score
// is not a Failure here; the caller decides what to do with it.
type Outcome struct {
	Table    *ingest.CanonicalTable
	Metadata Metadata
	Hints    []string
	Failure  ingest.ErrorKind
}

// ExtractTables runs the full extraction pipeline without ever returning an
// error. maxPages restricts the scan (0 means all pages, capped by
// MaxPages); failure-equivalent conditions come back as an Outcome with an
// empty table, a Failure kind and hints.
func ExtractTables(data []byte, filename string, maxPages int) *Outcome {
	out := &Outcome{Table: &ingest.CanonicalTable{}}

	if !bytes.HasPrefix(data, pdfMagic) {
		out.Failure = ingest.KindMagicByteMismatch
		out.Hints = []string{"The file does not start with the PDF signature; it may have been renamed. Upload the original PDF export."}
		return out
	}

	reader, pageCount, err := openDocument(data)
	if err != nil {
		out.Failure = ingest.KindStructuralParseFailure
		out.Hints = []string{"The PDF could not be opened; it may be corrupt or password-protected. Re-export it without a password."}
		return out
	}

	out.Metadata.PageCount = pageCount
	if out.Metadata.PageCount > MaxPages {
		out.Failure = ingest.KindPageLimitExceeded
		out.Hints = []string{fmt.Sprintf("The document has %d pages (limit %d). Split it into smaller files, or export the data as CSV or Excel from the source system.", out.Metadata.PageCount, MaxPages)}
		return out
	}

	limit := out.Metadata.PageCount
	if maxPages > 0 && maxPages < limit {
		limit = maxPages
	}

	var tables [][][]string
	for i := 1; i <= limit; i++ {
		start := time.Now()
		rows, pageErr := extractPage(reader, i)
		out.Metadata.PagesScanned++
		// One pathological page never aborts the document: over-budget or
		// failed pages are dropped and counted.
		if pageErr != nil || time.Since(start) > pageBudget {
			out.Metadata.PagesDropped++
			continue
		}
		if len(rows) >= 2 {
			tables = append(tables, rows)
		}
	}

	out.Metadata.TablesFound = len(tables)
	if len(tables) == 0 {
		out.Failure = ingest.KindNoDataExtracted
		out.Hints = []string{"No tables were found in this document. If the PDF is a scanned image it cannot be read; export the data as CSV or Excel from the source system instead."}
		return out
	}

	header, dataRows, stitched := stitch(tables)
	out.Metadata.Stitched = stitched
	out.Metadata.HeaderConfidence = headerConfidence(header)
	out.Metadata.NumericDensity = numericDensity(dataRows)
	out.Metadata.RowConsistency = rowConsistency(header, dataRows)
	out.Metadata.Confidence = composite(out.Metadata)

	if out.Metadata.Confidence < ConfidenceThreshold {
		out.Hints = qualityHints(out.Metadata)
	}
	out.Table = buildTable(header, dataRows)
	return out
}

// Preview runs the same pipeline on the first few pages so callers can
// cheaply assess quality before committing to a full parse. Previews never
// fail on low confidence; the caller reads the score and hints.
func Preview(data []byte, filename string) *Outcome {
	out := ExtractTables(data, filename, PreviewPages)
	out.Metadata.Preview = true
	return out
}

// Parse wraps ExtractTables over the whole document and enforces the hard
// failure conditions: any Failure kind from the scan, and a composite
// confidence below the threshold.
func Parse(data []byte, filename string) (*ingest.CanonicalTable, *Metadata, error) {
	out := ExtractTables(data, filename, 0)

	if out.Failure != "" {
		return nil, nil, ingest.NewError(out.Failure,
			fmt.Sprintf("%s: table extraction failed", filename),
			joinHints(out.Hints))
	}
	if out.Metadata.Confidence < ConfidenceThreshold {
		return nil, nil, ingest.NewError(ingest.KindLowConfidenceExtraction,
			fmt.Sprintf("%s: extraction confidence %.2f is below the %.2f threshold", filename, out.Metadata.Confidence, ConfidenceThreshold),
			joinHints(out.Hints))
	}
	return out.Table, &out.Metadata, nil
}

func joinHints(hints []string) string {
	var b []byte
	for i, h := range hints {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, h...)
	}
	return string(b)
}

// openDocument opens the document and resolves its page count. The backend
// resolves objects lazily and panics on malformed bodies, so a file that
// opens cleanly can still panic on the first resolution; both steps run
// under one recover.
func openDocument(data []byte) (r *pdf.Reader, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("document structure could not be resolved: %v", rec)
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, err
	}
	return r, r.NumPage(), nil
}

// extractPage resolves one page and pulls its positioned text into rows of
// cells. Page-tree resolution panics on malformed objects just like the
// document body does; the recover turns that into a dropped page, not a
// dead parse.
func extractPage(r *pdf.Reader, number int) (rows [][]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page extraction panicked: %v", rec)
		}
	}()

	p := r.Page(number)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page object missing")
	}
	textRows, err := p.GetTextByRow()
	if err != nil {
		return nil, err
	}

	for _, tr := range textRows {
		cells := clusterCells(tr.Content)
		// Single-cell lines are titles and footers, not table rows.
		if len(cells) >= 2 {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

// clusterCells splits one horizontal line of positioned text fragments into
// cells wherever a gap wider than roughly one character run separates them.
func clusterCells(texts pdf.TextHorizontal) []string {
	if len(texts) == 0 {
		return nil
	}
	sort.Sort(texts)

	const columnGap = 10.0
	var cells []string
	current := texts[0].S
	prevEnd := texts[0].X + texts[0].W

	for _, t := range texts[1:] {
		gap := t.X - prevEnd
		switch {
		case gap > columnGap:
			cells = append(cells, trim(current))
			current = t.S
		case gap > 1.0:
			current += " " + t.S
		default:
			current += t.S
		}
		prevEnd = t.X + t.W
	}
	cells = append(cells, trim(current))
	return cells
}

func trim(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
