package warehouse

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// TableName is the warehouse table holding the aggregated KPI rows.
const TableName = "kpis"

const schemaSQL = `
CREATE TABLE kpis (
	site TEXT NOT NULL,
	year_month TEXT NOT NULL,
	orders_count INTEGER NOT NULL,
	completed_count INTEGER NOT NULL,
	avg_lead_days REAL,
	cost_total REAL NOT NULL,
	avg_percent_complete REAL,
	defects_total INTEGER NOT NULL,
	production_count INTEGER NOT NULL,
	completion_rate REAL,
	employee_count INTEGER NOT NULL,
	supplier_count INTEGER NOT NULL,
	generated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (site, year_month)
)`

const insertSQL = `
INSERT INTO kpis (
	site, year_month, orders_count, completed_count, avg_lead_days,
	cost_total, avg_percent_complete, defects_total, production_count,
	completion_rate, employee_count, supplier_count, generated_at
) VALUES (
	:site, :year_month, :orders_count, :completed_count, :avg_lead_days,
	:cost_total, :avg_percent_complete, :defects_total, :production_count,
	:completion_rate, :employee_count, :supplier_count, :generated_at
)`

// Writer persists the KPI table into the warehouse database.
type Writer struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewWriter creates a warehouse writer over an open connection.
func NewWriter(db *sqlx.DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{db: db, logger: logger}
}

// ReplaceKPIs drops and recreates the kpis table with the given rows.
// Replacement runs in a single transaction; re-running the pipeline
// overwrites prior rows rather than merging.
func (w *Writer) ReplaceKPIs(ctx context.Context, rows []domain.KPIRow) error {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("begin warehouse transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS kpis`); err != nil {
		return errors.NewStorageError("drop existing kpis table", err)
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return errors.NewStorageError("create kpis table", err)
	}

	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, insertSQL, row); err != nil {
			return errors.NewStorageError("insert kpi row", err).
				WithContext("site", row.Site).
				WithContext("year_month", row.YearMonth)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("commit warehouse transaction", err)
	}

	w.logger.InfoContext(ctx, "wrote KPI table to warehouse",
		slog.String("table", TableName),
		slog.Int("rows", len(rows)))

	return nil
}

// ReadKPIs reads back every row ordered by the canonical export order.
func (w *Writer) ReadKPIs(ctx context.Context) ([]domain.KPIRow, error) {
	var rows []domain.KPIRow
	query := `SELECT site, year_month, orders_count, completed_count, avg_lead_days,
		cost_total, avg_percent_complete, defects_total, production_count,
		completion_rate, employee_count, supplier_count, generated_at
		FROM kpis ORDER BY site, year_month`
	if err := w.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.NewStorageError("query kpis table", err)
	}
	return rows, nil
}
