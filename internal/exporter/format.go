package exporter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bicli/pkg/contracts/domain"
)

// TimestampFormat is the layout for generated_at in textual exports.
const TimestampFormat = time.RFC3339Nano

// Exporter serializes the KPI table to one output format. All exporters
// emit identical column order (domain.KPIColumns) and identical row
// order (the aggregator's site, year_month sort).
type Exporter interface {
	Export(ctx context.Context, rows []domain.KPIRow, path string) error
	Format() string
}

// recordOf renders a KPI row as strings in canonical column order.
// Null metrics become empty strings so they survive the round trip.
func recordOf(row domain.KPIRow) []string {
	return []string{
		row.Site,
		row.YearMonth,
		strconv.FormatInt(row.OrdersCount, 10),
		strconv.FormatInt(row.CompletedCount, 10),
		formatOptFloat(row.AvgLeadDays),
		formatFloat(row.CostTotal),
		formatOptFloat(row.AvgPercentComplete),
		strconv.FormatInt(row.DefectsTotal, 10),
		strconv.FormatInt(row.ProductionCount, 10),
		formatOptFloat(row.CompletionRate),
		strconv.FormatInt(row.EmployeeCount, 10),
		strconv.FormatInt(row.SupplierCount, 10),
		row.GeneratedAt.Format(TimestampFormat),
	}
}

// rowOf parses a textual record back into a KPI row. It is the inverse
// of recordOf and backs the exporters' readers.
func rowOf(record []string) (domain.KPIRow, error) {
	if len(record) != len(domain.KPIColumns()) {
		return domain.KPIRow{}, fmt.Errorf("expected %d columns, got %d", len(domain.KPIColumns()), len(record))
	}

	var row domain.KPIRow
	var err error

	row.Site = record[0]
	row.YearMonth = record[1]
	if row.OrdersCount, err = strconv.ParseInt(record[2], 10, 64); err != nil {
		return row, fmt.Errorf("parse orders_count: %w", err)
	}
	if row.CompletedCount, err = strconv.ParseInt(record[3], 10, 64); err != nil {
		return row, fmt.Errorf("parse completed_count: %w", err)
	}
	if row.AvgLeadDays, err = parseOptFloat(record[4]); err != nil {
		return row, fmt.Errorf("parse avg_lead_days: %w", err)
	}
	if row.CostTotal, err = strconv.ParseFloat(record[5], 64); err != nil {
		return row, fmt.Errorf("parse cost_total: %w", err)
	}
	if row.AvgPercentComplete, err = parseOptFloat(record[6]); err != nil {
		return row, fmt.Errorf("parse avg_percent_complete: %w", err)
	}
	if row.DefectsTotal, err = strconv.ParseInt(record[7], 10, 64); err != nil {
		return row, fmt.Errorf("parse defects_total: %w", err)
	}
	if row.ProductionCount, err = strconv.ParseInt(record[8], 10, 64); err != nil {
		return row, fmt.Errorf("parse production_count: %w", err)
	}
	if row.CompletionRate, err = parseOptFloat(record[9]); err != nil {
		return row, fmt.Errorf("parse completion_rate: %w", err)
	}
	if row.EmployeeCount, err = strconv.ParseInt(record[10], 10, 64); err != nil {
		return row, fmt.Errorf("parse employee_count: %w", err)
	}
	if row.SupplierCount, err = strconv.ParseInt(record[11], 10, 64); err != nil {
		return row, fmt.Errorf("parse supplier_count: %w", err)
	}
	if row.GeneratedAt, err = time.Parse(TimestampFormat, record[12]); err != nil {
		return row, fmt.Errorf("parse generated_at: %w", err)
	}

	return row, nil
}

// formatFloat keeps full float64 precision so values round-trip.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
