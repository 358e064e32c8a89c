package model

import "time"

const (
	RoleOwner    = "owner"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// User is an API caller: a depositor (owner), the batch operator, or an
// administrator. The account string doubles as the custody identity that
// deposits are pulled from and proceeds are paid to.
type User struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Account    string `gorm:"size:128;not null" json:"account"`
	APIKeyHash string `gorm:"size:255;not null" json:"-"`
	Role       string `gorm:"size:20;not null;default:owner" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for users.
func (User) TableName() string {
	return "users"
}
