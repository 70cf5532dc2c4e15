package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bicli/internal/errors"
	"bicli/pkg/contracts/domain"
)

// Severity indicates how a rule violation is classified.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names of the fixed check battery.
const (
	RuleOrderSiteNotNull     = "orders.site_not_null"
	RuleOrderIDNotNull       = "orders.order_id_not_null"
	RuleOrderCreatedNotNull  = "orders.created_at_not_null"
	RuleOrderCostNotNull     = "orders.cost_not_null"
	RuleOrderUniqueID        = "orders.unique_site_order_id"
	RuleOrderCostNonNegative = "orders.cost_non_negative"
	RuleOrderCompletionOrder = "orders.completion_not_before_creation"
	RulePercentCompleteRange = "production.percent_complete_in_range"
	RuleDefectsNonNegative   = "production.defects_non_negative"
)

// RuleResult is the outcome of a single rule over the full record set.
type RuleResult struct {
	Rule          string   `json:"rule"`
	Severity      Severity `json:"severity"`
	AffectedCount int      `json:"affected_count"`
	Details       []string `json:"details,omitempty"`
}

// Report is the structured data-quality report for one run.
type Report struct {
	GeneratedAt    time.Time    `json:"generated_at"`
	StrictMode     bool         `json:"strict_mode"`
	OrdersChecked  int          `json:"orders_checked"`
	LotsChecked    int          `json:"lots_checked"`
	OrdersExcluded int          `json:"orders_excluded"`
	LotsExcluded   int          `json:"lots_excluded"`
	Results        []RuleResult `json:"results"`
}

// HasViolations reports whether any rule flagged at least one record.
func (r *Report) HasViolations() bool {
	for _, res := range r.Results {
		if res.AffectedCount > 0 {
			return true
		}
	}
	return false
}

// TotalViolations sums affected counts across all rules.
func (r *Report) TotalViolations() int {
	total := 0
	for _, res := range r.Results {
		total += res.AffectedCount
	}
	return total
}

// WriteJSON persists the report to the given path.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewExportError("create directory for quality report", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.NewExportError("create quality report file", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return errors.NewExportError("encode quality report", err)
	}
	return nil
}

// Checker applies the fixed rule battery to merged source records.
// Violations are reported, never auto-corrected. In strict mode the
// violating rows are excluded from the returned slices; otherwise the
// input passes through untouched.
type Checker struct {
	logger *slog.Logger
	strict bool
}

// NewChecker creates a quality checker.
func NewChecker(logger *slog.Logger, strict bool) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{logger: logger, strict: strict}
}

// Check runs every rule and returns the report along with the order and
// production sets to aggregate (filtered only in strict mode).
func (c *Checker) Check(ctx context.Context, orders []domain.Order, lots []domain.ProductionLot) (*Report, []domain.Order, []domain.ProductionLot) {
	report := &Report{
		GeneratedAt:   time.Now(),
		StrictMode:    c.strict,
		OrdersChecked: len(orders),
		LotsChecked:   len(lots),
	}

	orderBad := make([]bool, len(orders))
	lotBad := make([]bool, len(lots))

	report.Results = append(report.Results,
		c.checkOrderNulls(orders, orderBad)...)
	report.Results = append(report.Results,
		c.checkDuplicates(orders, orderBad),
		c.checkOrderRanges(orders, orderBad),
		c.checkCompletionOrder(orders, orderBad),
		c.checkPercentRange(lots, lotBad),
		c.checkDefects(lots, lotBad),
	)

	for _, res := range report.Results {
		if res.AffectedCount > 0 {
			c.logger.WarnContext(ctx, "data quality rule violated",
				slog.String("rule", res.Rule),
				slog.String("severity", string(res.Severity)),
				slog.Int("affected", res.AffectedCount))
		}
	}

	if !c.strict {
		return report, orders, lots
	}

	keptOrders := make([]domain.Order, 0, len(orders))
	for i, o := range orders {
		if orderBad[i] {
			report.OrdersExcluded++
			continue
		}
		keptOrders = append(keptOrders, o)
	}
	keptLots := make([]domain.ProductionLot, 0, len(lots))
	for i, l := range lots {
		if lotBad[i] {
			report.LotsExcluded++
			continue
		}
		keptLots = append(keptLots, l)
	}

	c.logger.InfoContext(ctx, "strict mode excluded violating rows",
		slog.Int("orders_excluded", report.OrdersExcluded),
		slog.Int("lots_excluded", report.LotsExcluded))

	return report, keptOrders, keptLots
}

func (c *Checker) checkOrderNulls(orders []domain.Order, bad []bool) []RuleResult {
	site := RuleResult{Rule: RuleOrderSiteNotNull, Severity: SeverityError}
	id := RuleResult{Rule: RuleOrderIDNotNull, Severity: SeverityError}
	created := RuleResult{Rule: RuleOrderCreatedNotNull, Severity: SeverityError}
	cost := RuleResult{Rule: RuleOrderCostNotNull, Severity: SeverityError}

	for i, o := range orders {
		if o.Site == "" {
			site.AffectedCount++
			bad[i] = true
		}
		if o.OrderID == nil {
			id.AffectedCount++
			bad[i] = true
		}
		if o.CreatedAt == nil {
			created.AffectedCount++
			bad[i] = true
		}
		if o.Cost == nil {
			cost.AffectedCount++
			bad[i] = true
		}
	}
	return []RuleResult{site, id, created, cost}
}

func (c *Checker) checkDuplicates(orders []domain.Order, bad []bool) RuleResult {
	res := RuleResult{Rule: RuleOrderUniqueID, Severity: SeverityError}

	type key struct {
		site string
		id   int64
	}
	seen := make(map[key]int)
	for i, o := range orders {
		if o.OrderID == nil {
			continue
		}
		k := key{site: o.Site, id: *o.OrderID}
		if _, ok := seen[k]; ok {
			res.AffectedCount++
			bad[i] = true
			if len(res.Details) < 10 {
				res.Details = append(res.Details,
					fmt.Sprintf("duplicate (site=%s, order_id=%d)", k.site, k.id))
			}
			continue
		}
		seen[k] = i
	}
	return res
}

func (c *Checker) checkOrderRanges(orders []domain.Order, bad []bool) RuleResult {
	res := RuleResult{Rule: RuleOrderCostNonNegative, Severity: SeverityError}
	for i, o := range orders {
		if o.Cost != nil && *o.Cost < 0 {
			res.AffectedCount++
			bad[i] = true
			if len(res.Details) < 10 {
				res.Details = append(res.Details,
					fmt.Sprintf("order %s has negative cost %.2f", orderRef(o), *o.Cost))
			}
		}
	}
	return res
}

func (c *Checker) checkCompletionOrder(orders []domain.Order, bad []bool) RuleResult {
	res := RuleResult{Rule: RuleOrderCompletionOrder, Severity: SeverityError}
	for i, o := range orders {
		if o.CreatedAt != nil && o.CompletedAt != nil && o.CompletedAt.Before(*o.CreatedAt) {
			res.AffectedCount++
			bad[i] = true
			if len(res.Details) < 10 {
				res.Details = append(res.Details,
					fmt.Sprintf("order %s completed before creation", orderRef(o)))
			}
		}
	}
	return res
}

func (c *Checker) checkPercentRange(lots []domain.ProductionLot, bad []bool) RuleResult {
	res := RuleResult{Rule: RulePercentCompleteRange, Severity: SeverityError}
	for i, l := range lots {
		if l.PercentComplete < 0 || l.PercentComplete > 100 {
			res.AffectedCount++
			bad[i] = true
			if len(res.Details) < 10 {
				res.Details = append(res.Details,
					fmt.Sprintf("lot %d percent_complete %.1f out of [0,100]", l.LotID, l.PercentComplete))
			}
		}
	}
	return res
}

func (c *Checker) checkDefects(lots []domain.ProductionLot, bad []bool) RuleResult {
	res := RuleResult{Rule: RuleDefectsNonNegative, Severity: SeverityError}
	for i, l := range lots {
		if l.Defects < 0 {
			res.AffectedCount++
			bad[i] = true
			if len(res.Details) < 10 {
				res.Details = append(res.Details,
					fmt.Sprintf("lot %d has negative defects %d", l.LotID, l.Defects))
			}
		}
	}
	return res
}

func orderRef(o domain.Order) string {
	if o.OrderID != nil {
		return fmt.Sprintf("%s/%d", o.Site, *o.OrderID)
	}
	return fmt.Sprintf("%s/?", o.Site)
}
