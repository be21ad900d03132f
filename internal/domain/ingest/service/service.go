// Package service orchestrates the ingestion pipeline: detect the format,
// dispatch to the matching parser, and run column-role detection over the
// canonical table for downstream consumers.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/columns"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/format"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/iif"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/ofx"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/pdftable"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/spreadsheet"
	"github.com/FACorreiaa/statement-ingest/pkg/metrics"
)

// Result is the composite outcome of one ingestion run. Metadata holds the
// parser-specific record (*ofx.Metadata, *iif.Metadata, *pdftable.Metadata
// or *spreadsheet.Metadata) for diagnostics display.
type Result struct {
	IngestID  uuid.UUID
	Detection format.Detection
	Table     *ingest.CanonicalTable
	Metadata  any
	Roles     map[columns.Role]columns.Match
}

// IngestService runs detection and parser dispatch. It holds no mutable
// state beyond its collaborators and is safe for concurrent use.
type IngestService struct {
	detector *format.Detector
	logger   *slog.Logger
}

// NewIngestService creates the orchestration service.
func NewIngestService(detector *format.Detector, logger *slog.Logger) *IngestService {
	return &IngestService{detector: detector, logger: logger}
}

// Detect classifies an upload without parsing it.
func (s *IngestService) Detect(filename, contentType string, prefix []byte) format.Detection {
	d := s.detector.Detect(filename, contentType, prefix)
	metrics.DetectionsTotal.WithLabelValues(string(d.Format), string(d.Source)).Inc()
	return d
}

// Ingest runs the full pipeline over an in-memory upload. The context is
// accepted for call-site symmetry with the rest of the codebase; parsing is
// synchronous and CPU-bound, so callers should run Ingest on a worker.
func (s *IngestService) Ingest(ctx context.Context, filename, contentType string, data []byte) (*Result, error) {
	detection := s.Detect(filename, contentType, data)

	result := &Result{
		IngestID:  uuid.New(),
		Detection: detection,
	}

	table, meta, err := s.dispatch(detection.Format, filename, data)
	if err != nil {
		metrics.ParsesTotal.WithLabelValues(string(detection.Format), string(ingest.KindOf(err))).Inc()
		s.logger.Error("parse failed",
			slog.String("ingest_id", result.IngestID.String()),
			slog.String("filename", filename),
			slog.String("format", string(detection.Format)),
			slog.Any("error", err),
		)
		return nil, err
	}

	result.Table = table
	result.Metadata = meta
	result.Roles = columns.DetectRoles(table.Columns)

	metrics.ParsesTotal.WithLabelValues(string(detection.Format), "ok").Inc()
	s.logger.Info("parse complete",
		slog.String("ingest_id", result.IngestID.String()),
		slog.String("filename", filename),
		slog.String("format", string(detection.Format)),
		slog.Int("rows", len(table.Rows)),
		slog.Int("columns", len(table.Columns)),
	)
	return result, nil
}

// PreviewPDF runs the cheap first-pages PDF scan so callers can assess
// quality before committing to a full parse. Previews never fail on low
// confidence.
func (s *IngestService) PreviewPDF(ctx context.Context, filename string, data []byte) *pdftable.Outcome {
	out := pdftable.Preview(data, filename)
	s.logger.Info("pdf preview",
		slog.String("filename", filename),
		slog.Float64("confidence", out.Metadata.Confidence),
		slog.Int("tables", out.Metadata.TablesFound),
	)
	return out
}

func (s *IngestService) dispatch(tag format.Tag, filename string, data []byte) (*ingest.CanonicalTable, any, error) {
	if !s.detector.Enabled(tag) {
		return nil, nil, ingest.NewError(ingest.KindUnsupportedFormat,
			fmt.Sprintf("format %q is not supported or has been disabled", tag),
			"export the data as CSV or Excel and upload that instead")
	}

	switch tag {
	case format.OFX, format.QBO:
		return wrap(ofx.Parse(data, filename))
	case format.IIF:
		return wrap(iif.Parse(data, filename))
	case format.PDF:
		return wrap(pdftable.Parse(data, filename))
	case format.CSV, format.TXT:
		return wrap(spreadsheet.ParseCSV(data, filename))
	case format.TSV:
		return wrap(spreadsheet.ParseTSV(data, filename))
	case format.XLSX:
		return wrap(spreadsheet.ParseXLSX(data, filename))
	case format.XLS:
		return wrap(spreadsheet.ParseXLS(data, filename))
	default:
		return nil, nil, ingest.NewError(ingest.KindUnsupportedFormat,
			fmt.Sprintf("format %q has no parser", tag),
			"export the data as CSV or Excel and upload that instead")
	}
}

// wrap erases the parser-specific metadata type so dispatch has one shape.
func wrap[M any](table *ingest.CanonicalTable, meta M, err error) (*ingest.CanonicalTable, any, error) {
	if err != nil {
		return nil, nil, err
	}
	return table, meta, nil
}
