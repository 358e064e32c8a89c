package model

import "time"

// MaxFeeBps caps the protocol fee at 10%. Fee is expressed in hundredths
// of a percent of the realized output of each slice.
const MaxFeeBps = 1000

// EngineParams is the single row of operator-tunable engine configuration.
// It is seeded from env config on first boot and mutated only through the
// admin surface.
type EngineParams struct {
	ID uint `gorm:"primaryKey" json:"id"`

	MinIntervalSeconds int64  `gorm:"not null" json:"min_interval_seconds"`
	FeeBps             int64  `gorm:"not null" json:"fee_bps"`
	FeeRecipient       string `gorm:"size:128;not null" json:"fee_recipient"`

	// MaxSlices of zero disables the per-order slice cap.
	MaxSlices uint `json:"max_slices"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for engine params.
func (EngineParams) TableName() string {
	return "engine_params"
}
