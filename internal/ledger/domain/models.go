// Package domain contains the append-only transaction log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType classifies one ledger line.
type TransactionType string

const (
	TransactionTypeCharge  TransactionType = "charge"
	TransactionTypePayment TransactionType = "payment"
	TransactionTypeRebate  TransactionType = "rebate"
	TransactionTypeRefund  TransactionType = "refund"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCharge, TransactionTypePayment, TransactionTypeRebate, TransactionTypeRefund:
		return true
	default:
		return false
	}
}

// Transaction is one immutable ledger line. Corrections are new offsetting
// transactions; rows are never updated or deleted.
//
// Amount carries the poster-assigned sign: charges and refunds are positive
// (they raise the guest's balance), payments and rebates negative.
type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_transactions_reference,priority:1" json:"tenant_id"`
	FolioID       snowflake.ID      `gorm:"not null;index" json:"folio_id"`
	Type          TransactionType   `gorm:"type:text;not null" json:"type"`
	Amount        int64             `gorm:"not null" json:"amount"`
	Description   string            `gorm:"type:text" json:"description,omitempty"`
	Department    string            `gorm:"type:text" json:"department,omitempty"`
	Channel       string            `gorm:"type:text;index" json:"channel,omitempty"`
	ReferenceType string            `gorm:"type:text;not null;uniqueIndex:ux_transactions_reference,priority:2" json:"reference_type"`
	ReferenceID   string            `gorm:"type:text;not null;uniqueIndex:ux_transactions_reference,priority:3" json:"reference_id"`
	ActorID       string            `gorm:"type:text" json:"actor_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "folio_transactions" }

// Magnitude is the unsigned amount of the line.
func (t Transaction) Magnitude() int64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// SignedAmount applies the posting sign convention to an unsigned magnitude.
func SignedAmount(txType TransactionType, magnitude int64) int64 {
	switch txType {
	case TransactionTypePayment, TransactionTypeRebate:
		return -magnitude
	default:
		return magnitude
	}
}

// AggregateDelta returns the charge/payment aggregate movement for a line.
// Rebates reduce charges; refunds reduce payments.
func AggregateDelta(txType TransactionType, magnitude int64) (charges, payments int64) {
	switch txType {
	case TransactionTypeCharge:
		return magnitude, 0
	case TransactionTypeRebate:
		return -magnitude, 0
	case TransactionTypePayment:
		return 0, magnitude
	case TransactionTypeRefund:
		return 0, -magnitude
	default:
		return 0, 0
	}
}
