// Package domain contains the occupancy read model the ledger hangs off.
// A stay's ID doubles as the booking ID its folios reference.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// StayStatus represents occupancy lifecycle states.
type StayStatus string

const (
	StayStatusReserved   StayStatus = "reserved"
	StayStatusInHouse    StayStatus = "in_house"
	StayStatusCheckedOut StayStatus = "checked_out"
)

// Stay is one guest stay with its contracted room amount.
type Stay struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	GuestName        string       `gorm:"type:text;not null" json:"guest_name"`
	Status           StayStatus   `gorm:"type:text;not null;default:'reserved';index" json:"status"`
	ContractedAmount int64        `gorm:"not null;default:0" json:"contracted_amount"`
	Currency         string       `gorm:"type:text;not null" json:"currency"`
	CheckInAt        *time.Time   `json:"check_in_at,omitempty"`
	CheckOutAt       *time.Time   `json:"check_out_at,omitempty"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Stay) TableName() string { return "stays" }
