package model

import (
	"time"

	"github.com/shopspring/decimal"

	"dcaengine/src/asset"
)

// Order lifecycle statuses. Completed and cancelled are terminal:
// no transition ever leaves them.
const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order is a recurring exchange instruction held in custody until it is
// fully executed or cancelled by its owner.
type Order struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Owner string `gorm:"size:128;index;not null" json:"owner"`

	InputAsset  string `gorm:"size:32;not null" json:"input_asset"`
	OutputAsset string `gorm:"size:32;not null" json:"output_asset"`

	TotalAmount     decimal.Decimal `gorm:"type:decimal(38,18)" json:"total_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(38,18)" json:"remaining_amount"`
	AmountPerSlice  decimal.Decimal `gorm:"type:decimal(38,18)" json:"amount_per_slice"`
	MinAmountOut    decimal.Decimal `gorm:"type:decimal(38,18)" json:"min_amount_out"`

	// MaxSlices of zero means the order is bounded by RemainingAmount only.
	MaxSlices      uint `json:"max_slices"`
	SlicesExecuted uint `json:"slices_executed"`

	IntervalSeconds int64      `gorm:"not null" json:"interval_seconds"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`

	Status string `gorm:"size:20;not null;default:active" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// One-to-many relation: one order can have many events
	Events []OrderEvent `gorm:"foreignKey:OrderID" json:"events,omitempty"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsActive() bool {
	return o.Status == OrderStatusActive
}

// Input returns the resolved input asset variant carried by the record.
func (o *Order) Input() asset.Asset {
	a, _ := asset.Parse(o.InputAsset)
	return a
}

// Output returns the resolved output asset variant carried by the record.
func (o *Order) Output() asset.Asset {
	a, _ := asset.Parse(o.OutputAsset)
	return a
}

// IntervalMet reports whether enough time has passed since the last
// successful execution. An order that never executed is always eligible.
func (o *Order) IntervalMet(now time.Time) bool {
	if o.LastExecutedAt == nil {
		return true
	}
	return !now.Before(o.LastExecutedAt.Add(time.Duration(o.IntervalSeconds) * time.Second))
}
