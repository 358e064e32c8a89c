// model/order_event.go
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent types cover every observable state transition so off-ledger
// observers can reconcile batch outcomes without re-deriving them.
const (
	EventOrderCreated       = "order_created"
	EventExecutionSucceeded = "execution_succeeded"
	EventExecutionFailed    = "execution_failed"
	EventOrderCancelled     = "order_cancelled"
	EventOrderCompleted     = "order_completed"
)

// OrderEvent stores one notification per order state transition, including
// the realized amounts of an execution and a human-readable failure reason.
type OrderEvent struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Foreign key to Order
	OrderID uint   `gorm:"index" json:"order_id"`
	Order   *Order `gorm:"constraint:OnDelete:CASCADE" json:"order,omitempty"`

	Type  string `gorm:"size:50;not null" json:"type"` // see Event* constants
	Venue string `gorm:"size:128" json:"venue,omitempty"`

	AmountIn  decimal.Decimal `gorm:"type:decimal(38,18)" json:"amount_in"`
	AmountOut decimal.Decimal `gorm:"type:decimal(38,18)" json:"amount_out"`
	Fee       decimal.Decimal `gorm:"type:decimal(38,18)" json:"fee"`
	Refund    decimal.Decimal `gorm:"type:decimal(38,18)" json:"refund"`

	Reason string `gorm:"size:255" json:"reason,omitempty"` // human-readable reason (e.g. "interval not met")

	CreatedAt time.Time `json:"created_at"`
}

// TableName allows you to control the exact table name for order events.
func (OrderEvent) TableName() string {
	return "order_events"
}
