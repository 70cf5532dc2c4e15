package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"

	"bicli/internal/errors"
	"bicli/internal/source"
)

// demoSeed fixes the RNG so repeated demo runs produce identical source
// data and therefore identical KPI tables.
const demoSeed = 42

var demoSites = []string{"Bremen", "Hamburg", "Rendsburg"}

const seedSchemaSQL = `
CREATE TABLE orders (
    order_id     INTEGER,
    site         TEXT,
    created_at   TEXT,
    completed_at TEXT,
    status       TEXT,
    cost         REAL
);
CREATE TABLE production (
    lot_id           INTEGER PRIMARY KEY,
    site             TEXT,
    start_date       TEXT,
    percent_complete REAL,
    defects          INTEGER
);
`

// Seeder populates an empty source database with deterministic demo
// data so the pipeline can run without a real upstream system.
type Seeder struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSeeder creates a demo-data seeder over an open source connection.
func NewSeeder(db *sqlx.DB, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{db: db, logger: logger}
}

// HasOrders reports whether the source already contains an orders table.
func (s *Seeder) HasOrders(ctx context.Context) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'orders'`
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return false, errors.NewSourceError("inspect source schema", err)
	}
	return count > 0, nil
}

// Seed creates the orders and production tables and fills them with a
// reproducible demo dataset. A few deliberately broken rows are included
// so the quality report has something to flag.
func (s *Seeder) Seed(ctx context.Context) error {
	s.logger.InfoContext(ctx, "seeding demo source database")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewSourceError("begin seed transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, seedSchemaSQL); err != nil {
		return errors.NewSourceError("create demo tables", err)
	}

	rng := rand.New(rand.NewSource(demoSeed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	insertOrder := `INSERT INTO orders (order_id, site, created_at, completed_at, status, cost)
		VALUES (?, ?, ?, ?, ?, ?)`

	for i := 0; i < 500; i++ {
		site := demoSites[rng.Intn(len(demoSites))]
		created := start.AddDate(0, 0, rng.Intn(365))

		var completedAt, status interface{}
		status = "open"
		if rng.Float64() < 0.8 {
			lead := 10 + rng.Intn(111)
			completedAt = created.AddDate(0, 0, lead).Format(source.DateFormat)
			status = "completed"
		}

		cost := 10000 + rng.NormFloat64()*2000
		if cost < 0 {
			cost = 0
		}

		if _, err := tx.ExecContext(ctx, insertOrder,
			i+1, site, created.Format(source.DateFormat), completedAt, status, cost); err != nil {
			return errors.NewSourceError("insert demo order", err)
		}
	}

	// Broken rows for the quality checker: missing cost, negative cost,
	// duplicate order id, completion before creation, missing site.
	broken := []struct {
		args []interface{}
	}{
		{[]interface{}{501, "Bremen", "2024-03-10", nil, "open", nil}},
		{[]interface{}{502, "Hamburg", "2024-04-02", "2024-04-20", "completed", -125.0}},
		{[]interface{}{1, "Bremen", "2024-05-01", nil, "open", 9800.0}},
		{[]interface{}{503, "Rendsburg", "2024-06-15", "2024-06-01", "completed", 10400.0}},
		{[]interface{}{504, nil, "2024-07-07", nil, "open", 9100.0}},
	}
	for _, row := range broken {
		if _, err := tx.ExecContext(ctx, insertOrder, row.args...); err != nil {
			return errors.NewSourceError("insert demo order", err)
		}
	}

	insertLot := `INSERT INTO production (lot_id, site, start_date, percent_complete, defects)
		VALUES (?, ?, ?, ?, ?)`

	for i := 0; i < 300; i++ {
		site := demoSites[rng.Intn(len(demoSites))]
		startDate := start.AddDate(0, 0, rng.Intn(365))
		percent := rng.Float64() * 100
		defects := rng.Intn(11)

		if _, err := tx.ExecContext(ctx, insertLot,
			i+1, site, startDate.Format(source.DateFormat), percent, defects); err != nil {
			return errors.NewSourceError("insert demo production lot", err)
		}
	}
	// One out-of-range percent_complete for the quality report
	if _, err := tx.ExecContext(ctx, insertLot, 301, "Hamburg", "2024-08-12", 105.0, 2); err != nil {
		return errors.NewSourceError("insert demo production lot", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewSourceError("commit demo seed", err)
	}

	s.logger.InfoContext(ctx, "seeded demo source database",
		slog.Int("orders", 505),
		slog.Int("production_lots", 301))
	return nil
}

// SeedEmployeeCSV writes a demo employee-count file if none exists.
func SeedEmployeeCSV(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	content := "site,employee_count\nBremen,120\nHamburg,85\nRendsburg,40\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.NewSourceError("write demo employee file", err)
	}
	logger.Info("seeded demo employee file", slog.String("path", path))
	return nil
}

// SeedSupplierXLSX writes a demo supplier workbook if none exists.
func SeedSupplierXLSX(path string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"site", "supplier_count"},
		{"Bremen", 12},
		{"Hamburg", 7},
		{"Rendsburg", 3},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.NewSourceError("build demo supplier file", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.NewSourceError("build demo supplier file", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.NewSourceError(fmt.Sprintf("save demo supplier file %s", path), err)
	}
	logger.Info("seeded demo supplier file", slog.String("path", path))
	return nil
}
