package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"bicli/pkg/contracts/domain"
)

// JoinStrategy selects how production lots are joined onto KPI rows.
type JoinStrategy string

const (
	// JoinSiteWide joins site-level production totals onto every month
	// row of the site. This mirrors the historical report behavior.
	JoinSiteWide JoinStrategy = "site"
	// JoinSiteMonth scopes production metrics to the same year-month as
	// the order group.
	JoinSiteMonth JoinStrategy = "site_month"
)

// AggregatorConfig holds configuration options for the Aggregator.
type AggregatorConfig struct {
	ProductionJoin JoinStrategy
}

// DefaultAggregatorConfig returns the default configuration.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{ProductionJoin: JoinSiteWide}
}

// RunContext carries per-run identity into the aggregator so that output
// rows are deterministic and testable: generated_at is stamped from here,
// never from ambient time inside the aggregation.
type RunContext struct {
	RunID     string
	StartedAt time.Time
}

// Aggregator materializes one KPI row per (site, year_month) present in
// the order data. Sites that appear only in production, employee or
// supplier sources produce no rows.
type Aggregator struct {
	logger *slog.Logger
	cfg    AggregatorConfig
}

// NewAggregator creates a KPI aggregator with the given configuration.
func NewAggregator(logger *slog.Logger, cfg AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProductionJoin == "" {
		cfg.ProductionJoin = JoinSiteWide
	}
	return &Aggregator{logger: logger, cfg: cfg}
}

type groupKey struct {
	site      string
	yearMonth string
}

type orderGroup struct {
	ordersCount    int64
	completedCount int64
	leadDaysSum    float64
	leadDaysN      int64
	costTotal      float64
}

type productionGroup struct {
	percentSum   float64
	defectsTotal int64
	lotCount     int64
}

// Aggregate computes the KPI table from validated records.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	run RunContext,
	orders []domain.Order,
	lots []domain.ProductionLot,
	employees []domain.EmployeeCount,
	suppliers []domain.SupplierCount,
) ([]domain.KPIRow, error) {
	if run.StartedAt.IsZero() {
		return nil, fmt.Errorf("run context has no start timestamp")
	}

	a.logger.InfoContext(ctx, "aggregating KPI rows",
		slog.Int("orders", len(orders)),
		slog.Int("production_lots", len(lots)),
		slog.String("production_join", string(a.cfg.ProductionJoin)))

	groups := make(map[groupKey]*orderGroup)
	var ungroupable int
	for _, o := range orders {
		ym := o.YearMonth()
		if o.Site == "" || ym == "" {
			// No usable group key; the quality report already flags these.
			ungroupable++
			continue
		}
		k := groupKey{site: o.Site, yearMonth: ym}
		g, ok := groups[k]
		if !ok {
			g = &orderGroup{}
			groups[k] = g
		}
		g.ordersCount++
		if o.Cost != nil {
			g.costTotal += *o.Cost
		}
		if o.IsCompleted() {
			g.completedCount++
			if lead, ok := o.LeadDays(); ok {
				g.leadDaysSum += lead
				g.leadDaysN++
			}
		}
	}
	if ungroupable > 0 {
		a.logger.WarnContext(ctx, "orders without a usable group key",
			slog.Int("count", ungroupable))
	}

	production := a.groupProduction(lots)
	employeeBySite := make(map[string]int64, len(employees))
	for _, e := range employees {
		employeeBySite[e.Site] += e.Count
	}
	supplierBySite := make(map[string]int64, len(suppliers))
	for _, s := range suppliers {
		supplierBySite[s.Site] += s.Count
	}

	rows := make([]domain.KPIRow, 0, len(groups))
	for k, g := range groups {
		row := domain.KPIRow{
			Site:           k.site,
			YearMonth:      k.yearMonth,
			OrdersCount:    g.ordersCount,
			CompletedCount: g.completedCount,
			CostTotal:      g.costTotal,
			EmployeeCount:  employeeBySite[k.site],
			SupplierCount:  supplierBySite[k.site],
			GeneratedAt:    run.StartedAt,
		}
		if g.leadDaysN > 0 {
			avg := g.leadDaysSum / float64(g.leadDaysN)
			row.AvgLeadDays = &avg
		}
		if g.ordersCount > 0 {
			rate := float64(g.completedCount) / float64(g.ordersCount)
			row.CompletionRate = &rate
		}
		if pg, ok := production[a.productionKey(k)]; ok && pg.lotCount > 0 {
			avg := pg.percentSum / float64(pg.lotCount)
			row.AvgPercentComplete = &avg
			row.DefectsTotal = pg.defectsTotal
			row.ProductionCount = pg.lotCount
		}
		rows = append(rows, row)
	}

	// Stable export order: site, then year_month
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Site != rows[j].Site {
			return rows[i].Site < rows[j].Site
		}
		return rows[i].YearMonth < rows[j].YearMonth
	})

	a.logger.InfoContext(ctx, "aggregated KPI table",
		slog.Int("rows", len(rows)),
		slog.String("run_id", run.RunID))

	return rows, nil
}

// groupProduction groups lots by the configured join key. Under the
// site-wide strategy the yearMonth half of the key is left empty.
func (a *Aggregator) groupProduction(lots []domain.ProductionLot) map[groupKey]*productionGroup {
	groups := make(map[groupKey]*productionGroup)
	for _, l := range lots {
		if l.Site == "" {
			continue
		}
		k := groupKey{site: l.Site}
		if a.cfg.ProductionJoin == JoinSiteMonth {
			ym := l.YearMonth()
			if ym == "" {
				continue
			}
			k.yearMonth = ym
		}
		g, ok := groups[k]
		if !ok {
			g = &productionGroup{}
			groups[k] = g
		}
		g.percentSum += l.PercentComplete
		g.defectsTotal += l.Defects
		g.lotCount++
	}
	return groups
}

func (a *Aggregator) productionKey(k groupKey) groupKey {
	if a.cfg.ProductionJoin == JoinSiteMonth {
		return k
	}
	return groupKey{site: k.site}
}
