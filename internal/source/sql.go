package source

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// DateFormat is the layout used for date columns in the source tables.
const DateFormat = "2006-01-02"

// SQLReader loads order and production records from the relational source.
type SQLReader struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLReader creates a reader over an open source connection.
func NewSQLReader(db *sqlx.DB, logger *slog.Logger) *SQLReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLReader{db: db, logger: logger}
}

// orderRow mirrors the orders table. Nullable columns scan into sql.Null*
// so that nulls reach the quality checker unmodified.
type orderRow struct {
	OrderID     sql.NullInt64   `db:"order_id"`
	Site        sql.NullString  `db:"site"`
	CreatedAt   sql.NullString  `db:"created_at"`
	CompletedAt sql.NullString  `db:"completed_at"`
	Status      sql.NullString  `db:"status"`
	Cost        sql.NullFloat64 `db:"cost"`
}

type productionRow struct {
	LotID           int64           `db:"lot_id"`
	Site            sql.NullString  `db:"site"`
	StartDate       sql.NullString  `db:"start_date"`
	PercentComplete sql.NullFloat64 `db:"percent_complete"`
	Defects         sql.NullInt64   `db:"defects"`
}

// ReadOrders reads all rows from the orders table.
func (r *SQLReader) ReadOrders(ctx context.Context) ([]domain.Order, error) {
	var rows []orderRow
	query := `SELECT order_id, site, created_at, completed_at, status, cost FROM orders`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.NewSchemaError("query orders table", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	var badDates int
	for _, row := range rows {
		order := domain.Order{}
		if row.OrderID.Valid {
			id := row.OrderID.Int64
			order.OrderID = &id
		}
		if row.Site.Valid {
			order.Site = row.Site.String
		}
		if row.Cost.Valid {
			cost := row.Cost.Float64
			order.Cost = &cost
		}
		if t, ok := parseDate(row.CreatedAt); ok {
			order.CreatedAt = &t
		} else if row.CreatedAt.Valid {
			badDates++
		}
		if t, ok := parseDate(row.CompletedAt); ok {
			order.CompletedAt = &t
		}
		order.Status = orderStatus(row)
		orders = append(orders, order)
	}

	if badDates > 0 {
		r.logger.WarnContext(ctx, "orders with unparseable creation dates",
			slog.Int("count", badDates))
	}
	r.logger.InfoContext(ctx, "read orders from source",
		slog.Int("count", len(orders)))

	return orders, nil
}

// ReadProduction reads all rows from the production table.
func (r *SQLReader) ReadProduction(ctx context.Context) ([]domain.ProductionLot, error) {
	var rows []productionRow
	query := `SELECT lot_id, site, start_date, percent_complete, defects FROM production`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.NewSchemaError("query production table", err)
	}

	lots := make([]domain.ProductionLot, 0, len(rows))
	for _, row := range rows {
		lot := domain.ProductionLot{
			LotID:           row.LotID,
			Site:            row.Site.String,
			PercentComplete: row.PercentComplete.Float64,
			Defects:         row.Defects.Int64,
		}
		if t, ok := parseDate(row.StartDate); ok {
			lot.StartDate = &t
		}
		lots = append(lots, lot)
	}

	r.logger.InfoContext(ctx, "read production lots from source",
		slog.Int("count", len(lots)))

	return lots, nil
}

// orderStatus derives the status from the status column, falling back to
// the presence of a completion date for sources without the column value.
func orderStatus(row orderRow) domain.OrderStatus {
	if row.Status.Valid && row.Status.String != "" {
		return domain.OrderStatus(row.Status.String)
	}
	if row.CompletedAt.Valid && row.CompletedAt.String != "" {
		return domain.OrderStatusCompleted
	}
	return domain.OrderStatusOpen
}

func parseDate(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateFormat, v.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
