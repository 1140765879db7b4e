// Package domain contains persistence models for guest folios.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// FolioType identifies which bucket of a stay absorbs a charge.
type FolioType string

const (
	FolioTypeRoom        FolioType = "room"
	FolioTypeIncidentals FolioType = "incidentals"
	FolioTypeCorporate   FolioType = "corporate"
	FolioTypeGroup       FolioType = "group"
	FolioTypeMiniBar     FolioType = "mini_bar"
	FolioTypeSpa         FolioType = "spa"
	FolioTypeRestaurant  FolioType = "restaurant"
)

// Valid reports whether t is a known folio type.
func (t FolioType) Valid() bool {
	switch t {
	case FolioTypeRoom, FolioTypeIncidentals, FolioTypeCorporate,
		FolioTypeGroup, FolioTypeMiniBar, FolioTypeSpa, FolioTypeRestaurant:
		return true
	default:
		return false
	}
}

// FolioStatus represents folio lifecycle states.
type FolioStatus string

const (
	FolioStatusOpen   FolioStatus = "open"
	FolioStatusClosed FolioStatus = "closed"
)

// Folio is one open financial bucket for a stay or sub-scope.
//
// Balance always equals TotalCharges - TotalPayments; the three columns are
// mutated together, only by the transaction poster, via guarded relative
// updates.
type Folio struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_folios_booking_type,priority:1" json:"tenant_id"`
	BookingID     snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_folios_booking_type,priority:2" json:"booking_id"`
	OrgID         *snowflake.ID     `gorm:"index" json:"org_id,omitempty"`
	Type          FolioType         `gorm:"type:text;not null;uniqueIndex:ux_folios_booking_type,priority:3" json:"type"`
	Status        FolioStatus       `gorm:"type:text;not null;default:'open'" json:"status"`
	TotalCharges  int64             `gorm:"not null;default:0" json:"total_charges"`
	TotalPayments int64             `gorm:"not null;default:0" json:"total_payments"`
	Balance       int64             `gorm:"not null;default:0" json:"balance"`
	Currency      string            `gorm:"type:text;not null" json:"currency"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Folio) TableName() string { return "folios" }
