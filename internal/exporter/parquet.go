package exporter

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// parquetRow mirrors domain.KPIRow with parquet schema tags. Nullable
// metrics map to OPTIONAL columns; generated_at is stored as an RFC3339
// string to avoid timezone loss in the INT96 timestamp encoding.
type parquetRow struct {
	Site               string   `parquet:"name=site, type=BYTE_ARRAY, convertedtype=UTF8"`
	YearMonth          string   `parquet:"name=year_month, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrdersCount        int64    `parquet:"name=orders_count, type=INT64"`
	CompletedCount     int64    `parquet:"name=completed_count, type=INT64"`
	AvgLeadDays        *float64 `parquet:"name=avg_lead_days, type=DOUBLE, repetitiontype=OPTIONAL"`
	CostTotal          float64  `parquet:"name=cost_total, type=DOUBLE"`
	AvgPercentComplete *float64 `parquet:"name=avg_percent_complete, type=DOUBLE, repetitiontype=OPTIONAL"`
	DefectsTotal       int64    `parquet:"name=defects_total, type=INT64"`
	ProductionCount    int64    `parquet:"name=production_count, type=INT64"`
	CompletionRate     *float64 `parquet:"name=completion_rate, type=DOUBLE, repetitiontype=OPTIONAL"`
	EmployeeCount      int64    `parquet:"name=employee_count, type=INT64"`
	SupplierCount      int64    `parquet:"name=supplier_count, type=INT64"`
	GeneratedAt        string   `parquet:"name=generated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ParquetExporter writes the KPI table as a parquet file.
type ParquetExporter struct {
	logger *slog.Logger
}

// NewParquetExporter creates a parquet exporter.
func NewParquetExporter(logger *slog.Logger) *ParquetExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetExporter{logger: logger}
}

// Format returns the export format name.
func (e *ParquetExporter) Format() string { return "parquet" }

// Export writes every KPI row into a snappy-compressed parquet file.
func (e *ParquetExporter) Export(ctx context.Context, rows []domain.KPIRow, path string) error {
	e.logger.InfoContext(ctx, "writing parquet export",
		slog.String("path", path),
		slog.Int("rows", len(rows)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewExportError("create directory for parquet export", err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return errors.NewExportError("create parquet export file", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		fw.Close()
		return errors.NewExportError("create parquet writer", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(toParquetRow(row)); err != nil {
			pw.WriteStop()
			fw.Close()
			return errors.NewExportError("write parquet record", err).
				WithContext("site", row.Site).
				WithContext("year_month", row.YearMonth)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return errors.NewExportError("finalize parquet export", err)
	}
	return fw.Close()
}

// ReadParquet reads an exported parquet file back into KPI rows.
func ReadParquet(path string) ([]domain.KPIRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errors.NewExportError("open parquet export", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetRow), 1)
	if err != nil {
		return nil, errors.NewParsingError("create parquet reader", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	records := make([]parquetRow, num)
	if err := pr.Read(&records); err != nil {
		return nil, errors.NewParsingError("read parquet export", err)
	}

	rows := make([]domain.KPIRow, 0, num)
	for _, rec := range records {
		row, err := fromParquetRow(rec)
		if err != nil {
			return nil, errors.NewParsingError("parse parquet record", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toParquetRow(row domain.KPIRow) parquetRow {
	return parquetRow{
		Site:               row.Site,
		YearMonth:          row.YearMonth,
		OrdersCount:        row.OrdersCount,
		CompletedCount:     row.CompletedCount,
		AvgLeadDays:        row.AvgLeadDays,
		CostTotal:          row.CostTotal,
		AvgPercentComplete: row.AvgPercentComplete,
		DefectsTotal:       row.DefectsTotal,
		ProductionCount:    row.ProductionCount,
		CompletionRate:     row.CompletionRate,
		EmployeeCount:      row.EmployeeCount,
		SupplierCount:      row.SupplierCount,
		GeneratedAt:        row.GeneratedAt.Format(TimestampFormat),
	}
}

func fromParquetRow(rec parquetRow) (domain.KPIRow, error) {
	generatedAt, err := time.Parse(TimestampFormat, rec.GeneratedAt)
	if err != nil {
		return domain.KPIRow{}, err
	}
	return domain.KPIRow{
		Site:               rec.Site,
		YearMonth:          rec.YearMonth,
		OrdersCount:        rec.OrdersCount,
		CompletedCount:     rec.CompletedCount,
		AvgLeadDays:        rec.AvgLeadDays,
		CostTotal:          rec.CostTotal,
		AvgPercentComplete: rec.AvgPercentComplete,
		DefectsTotal:       rec.DefectsTotal,
		ProductionCount:    rec.ProductionCount,
		CompletionRate:     rec.CompletionRate,
		EmployeeCount:      rec.EmployeeCount,
		SupplierCount:      rec.SupplierCount,
		GeneratedAt:        generatedAt,
	}, nil
}
