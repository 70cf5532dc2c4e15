package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// SheetName is the worksheet holding the KPI table.
const SheetName = "KPIs"

// ExcelExporter writes the KPI table as an xlsx workbook.
type ExcelExporter struct {
	logger *slog.Logger
}

// NewExcelExporter creates an Excel exporter.
func NewExcelExporter(logger *slog.Logger) *ExcelExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelExporter{logger: logger}
}

// Format returns the export format name.
func (e *ExcelExporter) Format() string { return "xlsx" }

// Export writes one sheet with header plus one row per KPI record.
// Cells carry textual values identical to the CSV export so that the
// two formats stay byte-for-byte equivalent per cell.
func (e *ExcelExporter) Export(ctx context.Context, rows []domain.KPIRow, path string) error {
	e.logger.InfoContext(ctx, "writing Excel export",
		slog.String("path", path),
		slog.Int("rows", len(rows)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewExportError("create directory for Excel export", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return errors.NewExportError("rename export sheet", err)
	}

	header := toInterfaces(domain.KPIColumns())
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return errors.NewExportError("write Excel header", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.NewExportError("compute Excel cell name", err)
		}
		record := toInterfaces(recordOf(row))
		if err := f.SetSheetRow(SheetName, cell, &record); err != nil {
			return errors.NewExportError("write Excel record", err).
				WithContext("site", row.Site).
				WithContext("year_month", row.YearMonth)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.NewExportError("save Excel export", err)
	}
	return nil
}

// ReadExcel reads an exported workbook back into KPI rows.
func ReadExcel(path string) ([]domain.KPIRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewExportError("open Excel export", err)
	}
	defer f.Close()

	records, err := f.GetRows(SheetName)
	if err != nil {
		return nil, errors.NewParsingError("read Excel export sheet", err)
	}
	if len(records) == 0 {
		return nil, errors.NewParsingError("Excel export has no header", nil)
	}

	columns := len(domain.KPIColumns())
	rows := make([]domain.KPIRow, 0, len(records)-1)
	for _, record := range records[1:] {
		// GetRows trims trailing empty cells; pad them back so null
		// metrics in the last columns still parse.
		for len(record) < columns {
			record = append(record, "")
		}
		row, err := rowOf(record)
		if err != nil {
			return nil, errors.NewParsingError("parse Excel record", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
