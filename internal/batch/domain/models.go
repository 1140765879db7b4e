// Package domain contains immutable batch snapshots: cash-drawer sessions
// and nightly audits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BatchType distinguishes the two closer instances.
type BatchType string

const (
	BatchTypeCashSession BatchType = "cash_session"
	BatchTypeNightAudit  BatchType = "night_audit"
)

// BatchStatus is the closer state machine.
type BatchStatus string

const (
	BatchStatusOpen    BatchStatus = "open"
	BatchStatusClosing BatchStatus = "closing"
	BatchStatusClosed  BatchStatus = "closed"
	BatchStatusFailed  BatchStatus = "failed"
)

// BatchSnapshot is one period or session record. Metadata carries the
// aggregate written at close time and is never mutated afterwards.
//
// DateKey is set only for night audits; the unique index over it gives the
// period batch its (tenant, type, date) idempotency key.
type BatchSnapshot struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID  snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_batches_date_key,priority:1" json:"tenant_id"`
	Type      BatchType         `gorm:"type:text;not null;uniqueIndex:ux_batches_date_key,priority:2" json:"type"`
	DateKey   *string           `gorm:"type:text;uniqueIndex:ux_batches_date_key,priority:3" json:"date_key,omitempty"`
	Status    BatchStatus       `gorm:"type:text;not null;default:'open'" json:"status"`
	OpenedBy  string            `gorm:"type:text" json:"opened_by,omitempty"`
	OpenedAt  time.Time         `gorm:"not null" json:"opened_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BatchSnapshot) TableName() string { return "batch_snapshots" }
