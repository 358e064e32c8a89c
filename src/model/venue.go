package model

import "time"

// Venue is an external exchange component the engine is allowed to swap
// through. Only whitelisted venues may be invoked; the set is mutated
// exclusively by the admin surface.
type Venue struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Account     string `gorm:"size:128;not null" json:"account"` // settlement account approvals are scoped to
	Endpoint    string `gorm:"size:255;not null" json:"endpoint"`
	Whitelisted bool   `gorm:"not null;default:false" json:"whitelisted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for venues.
func (Venue) TableName() string {
	return "venues"
}
