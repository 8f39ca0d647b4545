package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onnwee/travelog/internal/apperrors"
)

// ExportFormat defines supported export formats.
type ExportFormat string

const (
	// ExportFormatCSV exports records as comma-separated values.
	ExportFormatCSV ExportFormat = "csv"
	// ExportFormatJSON exports records as a JSON array.
	ExportFormatJSON ExportFormat = "json"
)

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// ExportOptions configures an export.
type ExportOptions struct {
	Format  ExportFormat
	From    time.Time // Inclusive; zero means unbounded
	To      time.Time // Inclusive; zero means unbounded
	EntryID string    // Optional diary entry filter
	Limit   int       // 0 = no limit
}

// Export renders the records matching opts, newest first.
func Export(ctx context.Context, l *Log, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, apperrors.NewValidationError("format", fmt.Sprintf("unsupported export format %q", opts.Format))
	}
	if opts.Limit < 0 {
		return nil, apperrors.NewValidationError("limit", "must be zero or greater")
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.To.Before(opts.From) {
		return nil, apperrors.NewValidationError("to", "must not be before from")
	}

	records, err := l.Query(ctx, opts.EntryID)
	if err != nil {
		return nil, err
	}

	// Time filter first so the limit counts matching records only.
	if !opts.From.IsZero() || !opts.To.IsZero() {
		records = filterByTimeRange(records, opts.From, opts.To)
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	if opts.Format == ExportFormatCSV {
		return exportToCSV(records)
	}
	return exportToJSON(records)
}

func filterByTimeRange(records []Entry, from, to time.Time) []Entry {
	filtered := make([]Entry, 0, len(records))
	for _, rec := range records {
		if !from.IsZero() && rec.At.Before(from) {
			continue
		}
		if !to.IsZero() && rec.At.After(to) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

var csvHeader = []string{
	"ID",
	"Timestamp (UTC)",
	"Entry ID",
	"Actor ID",
	"Action",
	"Reason",
	"Previous Hash",
}

func exportToCSV(records []Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.At.UTC().Format(time.RFC3339),
			rec.EntryID,
			rec.ActorID,
			string(rec.Action),
			rec.Reason,
			rec.PreviousHash,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func exportToJSON(records []Entry) ([]byte, error) {
	if records == nil {
		records = []Entry{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
