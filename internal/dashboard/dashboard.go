package dashboard

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// Renderer writes a static HTML dashboard from the KPI table.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a dashboard renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render writes a self-contained dashboard page with a completion-rate
// line chart and an orders-count bar chart, one series per site over
// year_month. An empty KPI table skips the dashboard instead of
// producing an empty page.
func (r *Renderer) Render(ctx context.Context, rows []domain.KPIRow, path string) error {
	if len(rows) == 0 {
		r.logger.WarnContext(ctx, "KPI table is empty, skipping dashboard")
		return nil
	}

	r.logger.InfoContext(ctx, "rendering dashboard",
		slog.String("path", path),
		slog.Int("rows", len(rows)))

	months, sites, index := pivot(rows)

	page := components.NewPage()
	page.PageTitle = "KPI Dashboard"
	page.AddCharts(
		completionRateChart(months, sites, index),
		ordersCountChart(months, sites, index),
	)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewExportError("create directory for dashboard", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.NewExportError("create dashboard file", err)
	}
	defer file.Close()

	if err := page.Render(file); err != nil {
		return errors.NewExportError("render dashboard", err)
	}
	return nil
}

// pivot indexes the KPI rows by (site, year_month) and returns the
// sorted month and site axes.
func pivot(rows []domain.KPIRow) ([]string, []string, map[string]map[string]domain.KPIRow) {
	index := make(map[string]map[string]domain.KPIRow)
	monthSet := make(map[string]struct{})

	for _, row := range rows {
		if index[row.Site] == nil {
			index[row.Site] = make(map[string]domain.KPIRow)
		}
		index[row.Site][row.YearMonth] = row
		monthSet[row.YearMonth] = struct{}{}
	}

	months := make([]string, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Strings(months)

	sites := make([]string, 0, len(index))
	for s := range index {
		sites = append(sites, s)
	}
	sort.Strings(sites)

	return months, sites, index
}

func completionRateChart(months, sites []string, index map[string]map[string]domain.KPIRow) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Completion rate by site",
			Subtitle: "completed orders / orders per month",
		}),
	)
	line.SetXAxis(months)

	for _, site := range sites {
		data := make([]opts.LineData, 0, len(months))
		for _, month := range months {
			row, ok := index[site][month]
			if !ok || row.CompletionRate == nil {
				// echarts renders "-" as a gap in the series
				data = append(data, opts.LineData{Value: "-"})
				continue
			}
			data = append(data, opts.LineData{Value: *row.CompletionRate})
		}
		line.AddSeries(site, data)
	}
	return line
}

func ordersCountChart(months, sites []string, index map[string]map[string]domain.KPIRow) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Orders by site",
		}),
	)
	bar.SetXAxis(months)

	for _, site := range sites {
		data := make([]opts.BarData, 0, len(months))
		for _, month := range months {
			row, ok := index[site][month]
			if !ok {
				data = append(data, opts.BarData{Value: 0})
				continue
			}
			data = append(data, opts.BarData{Value: row.OrdersCount})
		}
		bar.AddSeries(site, data)
	}
	return bar
}
