// Command ingest detects and parses a financial document from disk and
// prints a JSON summary of the canonical table, for smoke-testing exports
// outside the pipeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/format"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
)

type summary struct {
	IngestID    string           `json:"ingest_id"`
	Format      string           `json:"format"`
	Confidence  string           `json:"confidence"`
	Source      string           `json:"source"`
	Columns     []string         `json:"columns"`
	RowCount    int              `json:"row_count"`
	Roles       map[string]any   `json:"roles,omitempty"`
	Metadata    any              `json:"metadata,omitempty"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
	PreviewOnly bool             `json:"preview_only,omitempty"`
}

func main() {
	preview := flag.Bool("preview", false, "PDF only: scan the first pages and report quality without a full parse")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: ingest [-preview] [-v] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg, logger, path, *preview); err != nil {
		var ingErr *ingest.Error
		if errors.As(err, &ingErr) {
			// The remediation text is written for the uploader; surface it
			// directly.
			fmt.Fprintf(os.Stderr, "%s\n%s\n", ingErr.Message, ingErr.Remediation)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, path string, preview bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	disabled := make([]format.Tag, 0, len(cfg.Ingest.DisabledFormats))
	for _, f := range cfg.Ingest.DisabledFormats {
		disabled = append(disabled, format.Tag(f))
	}
	svc := service.NewIngestService(format.NewDetector(disabled), logger)

	filename := filepath.Base(path)

	if preview {
		out := svc.PreviewPDF(context.Background(), filename, data)
		return emit(summary{
			Format:      string(format.PDF),
			Columns:     out.Table.Columns,
			RowCount:    len(out.Table.Rows),
			Metadata:    out.Metadata,
			PreviewOnly: true,
		})
	}

	result, err := svc.Ingest(context.Background(), filename, "", data)
	if err != nil {
		return err
	}

	roles := make(map[string]any, len(result.Roles))
	for role, match := range result.Roles {
		roles[string(role)] = match
	}

	out := summary{
		IngestID:   result.IngestID.String(),
		Format:     string(result.Detection.Format),
		Confidence: string(result.Detection.Confidence),
		Source:     string(result.Detection.Source),
		Columns:    result.Table.Columns,
		RowCount:   len(result.Table.Rows),
		Roles:      roles,
		Metadata:   result.Metadata,
	}
	for i, row := range result.Table.Rows {
		if i >= 3 {
			break
		}
		out.SampleRows = append(out.SampleRows, row)
	}
	return emit(out)
}

func emit(s summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
