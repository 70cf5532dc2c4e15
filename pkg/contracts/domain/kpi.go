package domain

import (
	"time"
)

// KPIRow is one aggregated KPI record keyed by (site, year_month).
// Nullable metrics are pointers: avg_lead_days is nil when the group has
// no completed orders, completion_rate is nil when orders_count is zero,
// avg_percent_complete is nil when no production lots joined.
type KPIRow struct {
	Site               string    `json:"site" db:"site"`
	YearMonth          string    `json:"year_month" db:"year_month"`
	OrdersCount        int64     `json:"orders_count" db:"orders_count"`
	CompletedCount     int64     `json:"completed_count" db:"completed_count"`
	AvgLeadDays        *float64  `json:"avg_lead_days" db:"avg_lead_days"`
	CostTotal          float64   `json:"cost_total" db:"cost_total"`
	AvgPercentComplete *float64  `json:"avg_percent_complete" db:"avg_percent_complete"`
	DefectsTotal       int64     `json:"defects_total" db:"defects_total"`
	ProductionCount    int64     `json:"production_count" db:"production_count"`
	CompletionRate     *float64  `json:"completion_rate" db:"completion_rate"`
	EmployeeCount      int64     `json:"employee_count" db:"employee_count"`
	SupplierCount      int64     `json:"supplier_count" db:"supplier_count"`
	GeneratedAt        time.Time `json:"generated_at" db:"generated_at"`
}

// KPIColumns is the canonical column order shared by the warehouse table
// and every export format.
func KPIColumns() []string {
	return []string{
		"site",
		"year_month",
		"orders_count",
		"completed_count",
		"avg_lead_days",
		"cost_total",
		"avg_percent_complete",
		"defects_total",
		"production_count",
		"completion_rate",
		"employee_count",
		"supplier_count",
		"generated_at",
	}
}
