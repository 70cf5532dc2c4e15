package exporter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bicli/pkg/contracts/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleRows(t *testing.T) []domain.KPIRow {
	t.Helper()
	generatedAt, err := time.Parse(TimestampFormat, "2024-06-01T12:00:00.123456789Z")
	require.NoError(t, err)
	return []domain.KPIRow{
		{
			Site:               "Bremen",
			YearMonth:          "2024-01",
			OrdersCount:        3,
			CompletedCount:     2,
			AvgLeadDays:        ptr(5.0),
			CostTotal:          450,
			AvgPercentComplete: ptr(62.5),
			DefectsTotal:       4,
			ProductionCount:    2,
			CompletionRate:     ptr(2.0 / 3.0),
			EmployeeCount:      120,
			SupplierCount:      12,
			GeneratedAt:        generatedAt,
		},
		{
			// No completed orders, no production: nullable metrics stay nil
			Site:           "Hamburg",
			YearMonth:      "2024-02",
			OrdersCount:    1,
			CompletedCount: 0,
			CostTotal:      99.5,
			CompletionRate: ptr(0.0),
			EmployeeCount:  85,
			SupplierCount:  7,
			GeneratedAt:    generatedAt,
		},
	}
}

func assertRowsEqual(t *testing.T, want, got []domain.KPIRow) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Site, got[i].Site)
		assert.Equal(t, want[i].YearMonth, got[i].YearMonth)
		assert.Equal(t, want[i].OrdersCount, got[i].OrdersCount)
		assert.Equal(t, want[i].CompletedCount, got[i].CompletedCount)
		assert.Equal(t, want[i].AvgLeadDays, got[i].AvgLeadDays)
		assert.Equal(t, want[i].CostTotal, got[i].CostTotal)
		assert.Equal(t, want[i].AvgPercentComplete, got[i].AvgPercentComplete)
		assert.Equal(t, want[i].DefectsTotal, got[i].DefectsTotal)
		assert.Equal(t, want[i].ProductionCount, got[i].ProductionCount)
		assert.Equal(t, want[i].CompletionRate, got[i].CompletionRate)
		assert.Equal(t, want[i].EmployeeCount, got[i].EmployeeCount)
		assert.Equal(t, want[i].SupplierCount, got[i].SupplierCount)
		assert.True(t, want[i].GeneratedAt.Equal(got[i].GeneratedAt),
			"generated_at mismatch at row %d", i)
	}
}

func TestCSVExporter_RoundTrip(t *testing.T) {
	exporter := NewCSVExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.csv")
	rows := sampleRows(t)

	require.NoError(t, exporter.Export(context.Background(), rows, path))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assertRowsEqual(t, rows, got)
}

func TestCSVExporter_HeaderAndNullCells(t *testing.T) {
	exporter := NewCSVExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.csv")

	require.NoError(t, exporter.Export(context.Background(), sampleRows(t), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "site,year_month,orders_count,completed_count,avg_lead_days,cost_total,avg_percent_complete,defects_total,production_count,completion_rate,employee_count,supplier_count,generated_at\n")
	// Hamburg's avg_lead_days and avg_percent_complete render as empty cells
	assert.Contains(t, content, "Hamburg,2024-02,1,0,,99.5,,0,0,0,85,7,")
}

func TestCSVExporter_BOMPrefix(t *testing.T) {
	exporter := NewCSVExporter(nil)
	exporter.BOMPrefix = true
	path := filepath.Join(t.TempDir(), "kpis.csv")
	rows := sampleRows(t)

	require.NoError(t, exporter.Export(context.Background(), rows, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assertRowsEqual(t, rows, got)
}

func TestCSVExporter_EmptyTable(t *testing.T) {
	exporter := NewCSVExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.csv")

	require.NoError(t, exporter.Export(context.Background(), nil, path))

	got, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExcelExporter_RoundTrip(t *testing.T) {
	exporter := NewExcelExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.xlsx")
	rows := sampleRows(t)

	require.NoError(t, exporter.Export(context.Background(), rows, path))

	got, err := ReadExcel(path)
	require.NoError(t, err)
	assertRowsEqual(t, rows, got)
}

func TestExcelExporter_EmptyTable(t *testing.T) {
	exporter := NewExcelExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.xlsx")

	require.NoError(t, exporter.Export(context.Background(), nil, path))

	got, err := ReadExcel(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParquetExporter_RoundTrip(t *testing.T) {
	exporter := NewParquetExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.parquet")
	rows := sampleRows(t)

	require.NoError(t, exporter.Export(context.Background(), rows, path))

	got, err := ReadParquet(path)
	require.NoError(t, err)
	assertRowsEqual(t, rows, got)
}

func TestParquetExporter_EmptyTable(t *testing.T) {
	exporter := NewParquetExporter(nil)
	path := filepath.Join(t.TempDir(), "kpis.parquet")

	require.NoError(t, exporter.Export(context.Background(), nil, path))

	got, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExporters_AgreeAcrossFormats(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRows(t)
	ctx := context.Background()

	require.NoError(t, NewCSVExporter(nil).Export(ctx, rows, filepath.Join(dir, "kpis.csv")))
	require.NoError(t, NewExcelExporter(nil).Export(ctx, rows, filepath.Join(dir, "kpis.xlsx")))
	require.NoError(t, NewParquetExporter(nil).Export(ctx, rows, filepath.Join(dir, "kpis.parquet")))

	fromCSV, err := ReadCSV(filepath.Join(dir, "kpis.csv"))
	require.NoError(t, err)
	fromExcel, err := ReadExcel(filepath.Join(dir, "kpis.xlsx"))
	require.NoError(t, err)
	fromParquet, err := ReadParquet(filepath.Join(dir, "kpis.parquet"))
	require.NoError(t, err)

	assertRowsEqual(t, fromCSV, fromExcel)
	assertRowsEqual(t, fromCSV, fromParquet)
}

func TestRecordOf_InverseOfRowOf(t *testing.T) {
	for _, row := range sampleRows(t) {
		got, err := rowOf(recordOf(row))
		require.NoError(t, err)
		assertRowsEqual(t, []domain.KPIRow{row}, []domain.KPIRow{got})
	}
}

func TestRowOf_RejectsWrongWidth(t *testing.T) {
	_, err := rowOf([]string{"Bremen", "2024-01"})
	assert.Error(t, err)
}
