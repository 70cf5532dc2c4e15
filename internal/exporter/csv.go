package exporter

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// CSVExporter writes the KPI table as a plain CSV dump.
type CSVExporter struct {
	logger *slog.Logger
	// BOMPrefix adds a UTF-8 BOM for Excel compatibility. Off by
	// default to keep the export a byte-exact table dump.
	BOMPrefix bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(logger *slog.Logger) *CSVExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{logger: logger}
}

// Format returns the export format name.
func (e *CSVExporter) Format() string { return "csv" }

// Export writes header plus one record per KPI row.
func (e *CSVExporter) Export(ctx context.Context, rows []domain.KPIRow, path string) error {
	e.logger.InfoContext(ctx, "writing CSV export",
		slog.String("path", path),
		slog.Int("rows", len(rows)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewExportError("create directory for CSV export", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewExportError("create CSV export file", err)
	}
	defer file.Close()

	if e.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return errors.NewExportError("write BOM", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(domain.KPIColumns()); err != nil {
		return errors.NewExportError("write CSV header", err)
	}
	for _, row := range rows {
		if err := writer.Write(recordOf(row)); err != nil {
			return errors.NewExportError("write CSV record", err).
				WithContext("site", row.Site).
				WithContext("year_month", row.YearMonth)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewExportError("flush CSV export", err)
	}
	return nil
}

// ReadCSV reads an exported file back into KPI rows.
func ReadCSV(path string) ([]domain.KPIRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewExportError("open CSV export", err)
	}

	content := strings.TrimPrefix(string(data), "\xEF\xBB\xBF")
	reader := csv.NewReader(strings.NewReader(content))

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError("read CSV export", err)
	}
	if len(records) == 0 {
		return nil, errors.NewParsingError("CSV export has no header", nil)
	}

	rows := make([]domain.KPIRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row, err := rowOf(record)
		if err != nil {
			return nil, errors.NewParsingError("parse CSV record", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
