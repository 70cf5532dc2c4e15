package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"bicli/internal/config"
	"bicli/internal/dashboard"
	"bicli/internal/errors"
	"bicli/internal/exporter"
	"bicli/internal/infrastructure"
	"bicli/internal/kpi"
	"bicli/internal/quality"
	"bicli/internal/source"
	"bicli/internal/warehouse"
	"bicli/pkg/contracts/domain"
)

// Pipeline runs the full batch flow: extract, quality check, aggregate,
// warehouse load, export, dashboard. One call per invocation.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a pipeline from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the pipeline once. Source, schema and warehouse errors
// abort the run; export and dashboard failures are collected so the
// remaining outputs still get written, and reported as one error.
func (p *Pipeline) Run(ctx context.Context) error {
	run := kpi.RunContext{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	ctx = infrastructure.WithRunID(ctx, run.RunID)

	p.logger.InfoContext(ctx, "pipeline started",
		slog.String("source_dsn", p.cfg.Source.DSN),
		slog.String("warehouse_dsn", p.cfg.Warehouse.DSN))

	sourceDB, err := sqlx.Open("sqlite3", p.cfg.Source.DSN)
	if err != nil {
		return errors.NewSourceError("open source database", err)
	}
	defer sourceDB.Close()
	if err := sourceDB.PingContext(ctx); err != nil {
		return errors.NewSourceError("connect to source database", err)
	}

	if err := p.seedDemo(ctx, sourceDB); err != nil {
		return err
	}

	orders, lots, employees, suppliers, err := p.extract(ctx, sourceDB)
	if err != nil {
		return err
	}

	checker := quality.NewChecker(p.logger, p.cfg.Quality.StrictMode)
	report, orders, lots := checker.Check(ctx, orders, lots)
	p.logger.InfoContext(ctx, "quality check finished",
		slog.Int("violations", report.TotalViolations()),
		slog.Int("orders_excluded", report.OrdersExcluded),
		slog.Int("lots_excluded", report.LotsExcluded))
	if p.cfg.Output.QualityFile != "" {
		path := p.cfg.ExportPath(p.cfg.Output.QualityFile)
		if err := report.WriteJSON(path); err != nil {
			return err
		}
	}
	if p.cfg.Quality.StrictMode && len(orders) == 0 && report.OrdersExcluded > 0 {
		return errors.NewQualityError("strict mode excluded every order")
	}

	aggregator := kpi.NewAggregator(p.logger, kpi.AggregatorConfig{
		ProductionJoin: kpi.JoinStrategy(p.cfg.Pipeline.ProductionJoin),
	})
	rows, err := aggregator.Aggregate(ctx, run, orders, lots, employees, suppliers)
	if err != nil {
		return fmt.Errorf("aggregate KPI rows: %w", err)
	}

	if err := p.load(ctx, rows); err != nil {
		return err
	}

	return p.publish(ctx, rows)
}

func (p *Pipeline) seedDemo(ctx context.Context, db *sqlx.DB) error {
	if !p.cfg.Source.SeedDemo {
		return nil
	}

	seeder := NewSeeder(db, p.logger)
	hasOrders, err := seeder.HasOrders(ctx)
	if err != nil {
		return err
	}
	if !hasOrders {
		if err := seeder.Seed(ctx); err != nil {
			return err
		}
	}
	if err := SeedEmployeeCSV(p.cfg.Inputs.EmployeeCSV, p.logger); err != nil {
		return err
	}
	return SeedSupplierXLSX(p.cfg.Inputs.SupplierXLSX, p.logger)
}

func (p *Pipeline) extract(ctx context.Context, db *sqlx.DB) (
	[]domain.Order, []domain.ProductionLot, []domain.EmployeeCount, []domain.SupplierCount, error,
) {
	reader := source.NewSQLReader(db, p.logger)
	orders, err := reader.ReadOrders(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	lots, err := reader.ReadProduction(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	employees, err := source.NewEmployeeCSVReader(p.cfg.Inputs.EmployeeCSV, p.logger).Read(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	suppliers, err := source.NewSupplierXLSXReader(p.cfg.Inputs.SupplierXLSX, p.logger).Read(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return orders, lots, employees, suppliers, nil
}

func (p *Pipeline) load(ctx context.Context, rows []domain.KPIRow) error {
	dwDB, err := sqlx.Open("sqlite3", p.cfg.Warehouse.DSN)
	if err != nil {
		return errors.NewStorageError("open warehouse database", err)
	}
	defer dwDB.Close()
	if err := dwDB.PingContext(ctx); err != nil {
		return errors.NewStorageError("connect to warehouse database", err)
	}

	return warehouse.NewWriter(dwDB, p.logger).ReplaceKPIs(ctx, rows)
}

// publish writes the file exports and the dashboard. A failing output
// does not stop the others.
func (p *Pipeline) publish(ctx context.Context, rows []domain.KPIRow) error {
	type target struct {
		exporter exporter.Exporter
		file     string
	}
	var targets []target
	if p.cfg.Output.CSVFile != "" {
		targets = append(targets, target{exporter.NewCSVExporter(p.logger), p.cfg.Output.CSVFile})
	}
	if p.cfg.Output.ExcelFile != "" {
		targets = append(targets, target{exporter.NewExcelExporter(p.logger), p.cfg.Output.ExcelFile})
	}
	if p.cfg.Output.ParquetFile != "" {
		targets = append(targets, target{exporter.NewParquetExporter(p.logger), p.cfg.Output.ParquetFile})
	}

	var failures []error
	for _, t := range targets {
		path := p.cfg.ExportPath(t.file)
		if err := t.exporter.Export(ctx, rows, path); err != nil {
			p.logger.ErrorContext(ctx, "export failed",
				slog.String("format", t.exporter.Format()),
				slog.String("path", path),
				slog.String("error", err.Error()))
			failures = append(failures, err)
			continue
		}
		p.logger.InfoContext(ctx, "export written",
			slog.String("format", t.exporter.Format()),
			slog.String("path", path))
	}

	attempted := len(targets)
	if p.cfg.Output.DashboardFile != "" {
		attempted++
		path := p.cfg.ExportPath(p.cfg.Output.DashboardFile)
		if err := dashboard.NewRenderer(p.logger).Render(ctx, rows, path); err != nil {
			p.logger.ErrorContext(ctx, "dashboard rendering failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return errors.NewExportError(
			fmt.Sprintf("%d of %d outputs failed", len(failures), attempted),
			stderrors.Join(failures...))
	}

	p.logger.InfoContext(ctx, "pipeline finished",
		slog.Int("kpi_rows", len(rows)))
	return nil
}
