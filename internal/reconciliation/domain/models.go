// Package domain contains imported settlement batches and their match state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MatchConfidence classifies how a settlement record was linked to a
// transaction. The empty string means unmatched.
type MatchConfidence string

const (
	MatchExact    MatchConfidence = "exact"
	MatchProbable MatchConfidence = "probable"
	MatchManual   MatchConfidence = "manual"
)

// SettlementBatch is one externally imported point-of-sale settlement file.
type SettlementBatch struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	Provider    string       `gorm:"type:text;not null" json:"provider"`
	RecordCount int          `gorm:"not null;default:0" json:"record_count"`
	ImportedAt  time.Time    `gorm:"not null" json:"imported_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (SettlementBatch) TableName() string { return "settlement_batches" }

// SettlementRecord is one settlement line awaiting correlation. Matching
// never touches the transaction log; the link and confidence live here.
type SettlementRecord struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID             snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	BatchID              snowflake.ID    `gorm:"not null;index" json:"batch_id"`
	Amount               int64           `gorm:"not null" json:"amount"`
	Channel              string          `gorm:"type:text" json:"channel,omitempty"`
	ProviderRef          string          `gorm:"type:text;not null" json:"provider_ref"`
	OccurredAt           time.Time       `gorm:"not null" json:"occurred_at"`
	MatchedTransactionID *snowflake.ID   `gorm:"index" json:"matched_transaction_id,omitempty"`
	Confidence           MatchConfidence `gorm:"type:text;not null;default:''" json:"confidence,omitempty"`
	MatchedAt            *time.Time      `json:"matched_at,omitempty"`
	CreatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (SettlementRecord) TableName() string { return "settlement_records" }
