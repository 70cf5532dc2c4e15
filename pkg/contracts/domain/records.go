package domain

import (
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCompleted OrderStatus = "completed"
)

// Order represents a single order row from the source database.
// Required source fields are pointers so that nulls survive to the
// quality checker instead of being coerced at read time.
type Order struct {
	OrderID     *int64      `json:"order_id" validate:"required"`
	Site        string      `json:"site" validate:"required"`
	CreatedAt   *time.Time  `json:"created_at" validate:"required"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Status      OrderStatus `json:"status"`
	Cost        *float64    `json:"cost" validate:"required"`
}

// IsCompleted reports whether the order reached completed status.
func (o Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}

// LeadDays returns the elapsed days between creation and completion.
// The second return value is false when either date is missing.
func (o Order) LeadDays() (float64, bool) {
	if o.CreatedAt == nil || o.CompletedAt == nil {
		return 0, false
	}
	return o.CompletedAt.Sub(*o.CreatedAt).Hours() / 24, true
}

// YearMonth returns the creation month formatted as "2006-01".
// Empty when the creation date is missing.
func (o Order) YearMonth() string {
	if o.CreatedAt == nil {
		return ""
	}
	return o.CreatedAt.Format("2006-01")
}

// ProductionLot represents a production lot row from the source database.
type ProductionLot struct {
	LotID           int64      `json:"lot_id" validate:"required"`
	Site            string     `json:"site" validate:"required"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	PercentComplete float64    `json:"percent_complete" validate:"min=0,max=100"`
	Defects         int64      `json:"defects" validate:"min=0"`
}

// YearMonth returns the lot start month formatted as "2006-01".
func (p ProductionLot) YearMonth() string {
	if p.StartDate == nil {
		return ""
	}
	return p.StartDate.Format("2006-01")
}

// EmployeeCount holds the number of employees at a site.
type EmployeeCount struct {
	Site  string `json:"site" csv:"site" validate:"required"`
	Count int64  `json:"employee_count" csv:"employee_count" validate:"min=0"`
}

// SupplierCount holds the number of suppliers serving a site.
type SupplierCount struct {
	Site  string `json:"site" validate:"required"`
	Count int64  `json:"supplier_count" validate:"min=0"`
}
