package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bicli/internal/config"
	apperrors "bicli/internal/errors"
	"bicli/internal/exporter"
	"bicli/internal/warehouse"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Source.DSN = filepath.Join(dir, "source.db")
	cfg.Source.SeedDemo = true
	cfg.Warehouse.DSN = filepath.Join(dir, "dw.db")
	cfg.Inputs.EmployeeCSV = filepath.Join(dir, "mitarbeiter.csv")
	cfg.Inputs.SupplierXLSX = filepath.Join(dir, "lieferanten.xlsx")
	cfg.Output.Dir = filepath.Join(dir, "outputs")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipeline_FullDemoRun(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil)

	require.NoError(t, p.Run(context.Background()))

	for _, name := range []string{
		cfg.Output.CSVFile,
		cfg.Output.ExcelFile,
		cfg.Output.ParquetFile,
		cfg.Output.DashboardFile,
		cfg.Output.QualityFile,
	} {
		path := cfg.ExportPath(name)
		info, err := os.Stat(path)
		require.NoError(t, err, "missing output %s", name)
		assert.Positive(t, info.Size(), "empty output %s", name)
	}

	rows, err := exporter.ReadCSV(cfg.ExportPath(cfg.Output.CSVFile))
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	sites := make(map[string]bool)
	for _, row := range rows {
		sites[row.Site] = true
		assert.Regexp(t, `^\d{4}-\d{2}$`, row.YearMonth)
		assert.Positive(t, row.OrdersCount)
	}
	assert.True(t, sites["Bremen"])
	assert.True(t, sites["Hamburg"])
	assert.True(t, sites["Rendsburg"])
}

func TestPipeline_WarehouseMatchesExports(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, New(cfg, nil).Run(context.Background()))

	db, err := sqlx.Open("sqlite3", cfg.Warehouse.DSN)
	require.NoError(t, err)
	defer db.Close()

	stored, err := warehouse.NewWriter(db, nil).ReadKPIs(context.Background())
	require.NoError(t, err)

	exported, err := exporter.ReadCSV(cfg.ExportPath(cfg.Output.CSVFile))
	require.NoError(t, err)

	require.Len(t, exported, len(stored))
	for i := range stored {
		assert.Equal(t, stored[i].Site, exported[i].Site)
		assert.Equal(t, stored[i].YearMonth, exported[i].YearMonth)
		assert.Equal(t, stored[i].OrdersCount, exported[i].OrdersCount)
		assert.Equal(t, stored[i].CompletedCount, exported[i].CompletedCount)
	}
}

func TestPipeline_RerunIsIdempotentExceptTimestamp(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, nil)

	require.NoError(t, p.Run(context.Background()))
	first, err := exporter.ReadCSV(cfg.ExportPath(cfg.Output.CSVFile))
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	second, err := exporter.ReadCSV(cfg.ExportPath(cfg.Output.CSVFile))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		a, b := first[i], second[i]
		assert.Equal(t, a.Site, b.Site)
		assert.Equal(t, a.YearMonth, b.YearMonth)
		assert.Equal(t, a.OrdersCount, b.OrdersCount)
		assert.Equal(t, a.CompletedCount, b.CompletedCount)
		assert.Equal(t, a.AvgLeadDays, b.AvgLeadDays)
		assert.Equal(t, a.CostTotal, b.CostTotal)
		assert.Equal(t, a.CompletionRate, b.CompletionRate)
		assert.Equal(t, a.EmployeeCount, b.EmployeeCount)
		assert.Equal(t, a.SupplierCount, b.SupplierCount)
	}
}

func TestPipeline_StrictModeExcludesBrokenRows(t *testing.T) {
	relaxed := testConfig(t)
	require.NoError(t, New(relaxed, nil).Run(context.Background()))
	relaxedRows, err := exporter.ReadCSV(relaxed.ExportPath(relaxed.Output.CSVFile))
	require.NoError(t, err)

	strict := testConfig(t)
	strict.Quality.StrictMode = true
	require.NoError(t, New(strict, nil).Run(context.Background()))
	strictRows, err := exporter.ReadCSV(strict.ExportPath(strict.Output.CSVFile))
	require.NoError(t, err)

	var relaxedTotal, strictTotal int64
	for _, r := range relaxedRows {
		relaxedTotal += r.OrdersCount
	}
	for _, r := range strictRows {
		strictTotal += r.OrdersCount
	}
	// The demo seed plants broken orders, strict mode drops them
	assert.Less(t, strictTotal, relaxedTotal)
}

func TestPipeline_FailedExportDoesNotStopOtherOutputs(t *testing.T) {
	cfg := testConfig(t)

	// A directory at the CSV export path makes os.Create fail
	require.NoError(t, os.MkdirAll(cfg.ExportPath(cfg.Output.CSVFile), 0755))

	err := New(cfg, nil).Run(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeExport, appErr.Type)

	for _, name := range []string{
		cfg.Output.ExcelFile,
		cfg.Output.ParquetFile,
		cfg.Output.DashboardFile,
		cfg.Output.QualityFile,
	} {
		info, statErr := os.Stat(cfg.ExportPath(name))
		require.NoError(t, statErr, "missing output %s", name)
		assert.Positive(t, info.Size(), "empty output %s", name)
	}

	// The warehouse load ran before the exports
	db, dbErr := sqlx.Open("sqlite3", cfg.Warehouse.DSN)
	require.NoError(t, dbErr)
	defer db.Close()
	stored, readErr := warehouse.NewWriter(db, nil).ReadKPIs(context.Background())
	require.NoError(t, readErr)
	assert.NotEmpty(t, stored)
}

func TestPipeline_StrictModeFailsWhenAllOrdersExcluded(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.SeedDemo = false
	cfg.Quality.StrictMode = true

	db, err := sqlx.Open("sqlite3", cfg.Source.DSN)
	require.NoError(t, err)
	_, err = db.Exec(seedSchemaSQL)
	require.NoError(t, err)
	// Every order violates a rule, strict mode drops them all
	_, err = db.Exec(`INSERT INTO orders (order_id, site, created_at, completed_at, status, cost)
		VALUES (1, 'Bremen', '2024-01-05', NULL, 'open', NULL),
		       (2, NULL, '2024-02-01', NULL, 'open', 100.0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, SeedEmployeeCSV(cfg.Inputs.EmployeeCSV, nil))
	require.NoError(t, SeedSupplierXLSX(cfg.Inputs.SupplierXLSX, nil))

	err = New(cfg, nil).Run(context.Background())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeQuality, appErr.Type)
}

func TestPipeline_FatalOnMissingEmployeeFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.SeedDemo = false

	// Seed the source DB separately so only the employee file is missing
	db, err := sqlx.Open("sqlite3", cfg.Source.DSN)
	require.NoError(t, err)
	require.NoError(t, NewSeeder(db, nil).Seed(context.Background()))
	require.NoError(t, db.Close())

	err = New(cfg, nil).Run(context.Background())
	require.Error(t, err)
}

func TestSeeder_IsDeterministic(t *testing.T) {
	type snapshot struct {
		Orders int     `db:"orders"`
		Cost   float64 `db:"cost"`
	}
	runSeed := func() snapshot {
		db, err := sqlx.Open("sqlite3", ":memory:")
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, NewSeeder(db, nil).Seed(context.Background()))

		var s snapshot
		require.NoError(t, db.Get(&s,
			`SELECT COUNT(*) AS orders, COALESCE(SUM(cost), 0) AS cost FROM orders`))
		return s
	}

	first := runSeed()
	second := runSeed()
	assert.Equal(t, first, second)
	assert.Equal(t, 505, first.Orders)
}

func TestSeeder_HasOrders(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	seeder := NewSeeder(db, nil)

	has, err := seeder.HasOrders(context.Background())
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, seeder.Seed(context.Background()))

	has, err = seeder.HasOrders(context.Background())
	require.NoError(t, err)
	assert.True(t, has)
}
