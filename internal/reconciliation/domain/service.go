package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ImportRecord struct {
	Amount      int64
	Channel     string
	ProviderRef string
	OccurredAt  time.Time
}

type ImportBatchRequest struct {
	Provider string
	Records  []ImportRecord
}

type RunMatchRequest struct {
	BatchID string
}

// MatchSummary reports one reconciliation pass for operator review.
type MatchSummary struct {
	BatchID   snowflake.ID `json:"batch_id"`
	Scanned   int          `json:"scanned"`
	Exact     int          `json:"exact"`
	Probable  int          `json:"probable"`
	Manual    int          `json:"manual"`
	Unmatched int          `json:"unmatched"`
}

type ManualMatchRequest struct {
	RecordID      string
	TransactionID string
}

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, batch *SettlementBatch) error
	InsertRecord(ctx context.Context, db *gorm.DB, record *SettlementRecord) error
	FindBatch(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*SettlementBatch, error)
	FindRecord(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*SettlementRecord, error)
	// ListUnmatched pages unmatched records of a batch by id.
	ListUnmatched(ctx context.Context, db *gorm.DB, tenantID, batchID snowflake.ID, afterID snowflake.ID, limit int) ([]*SettlementRecord, error)
	// SetMatch links a record; when onlyUnmatched is set the update skips
	// records that already carry a link, keeping automatic passes
	// idempotent.
	SetMatch(ctx context.Context, db *gorm.DB, tenantID, recordID, transactionID snowflake.ID, confidence MatchConfidence, at time.Time, onlyUnmatched bool) (bool, error)
	ClearMatch(ctx context.Context, db *gorm.DB, tenantID, recordID snowflake.ID) (bool, error)
	CountByConfidence(ctx context.Context, db *gorm.DB, tenantID, batchID snowflake.ID) (map[MatchConfidence]int, int, error)
}

type Service interface {
	ImportBatch(context.Context, ImportBatchRequest) (SettlementBatch, error)
	// RunAutoMatch classifies every unmatched record of the batch.
	// Re-running skips records already matched.
	RunAutoMatch(context.Context, RunMatchRequest) (MatchSummary, error)
	ManualMatch(context.Context, ManualMatchRequest) (SettlementRecord, error)
	Unmatch(ctx context.Context, recordID string) (SettlementRecord, error)
	Summary(ctx context.Context, batchID string) (MatchSummary, error)
}

var (
	ErrInvalidTenant      = errors.New("invalid_tenant")
	ErrInvalidProvider    = errors.New("invalid_provider")
	ErrInvalidAmount      = errors.New("invalid_settlement_amount")
	ErrEmptyBatch         = errors.New("empty_settlement_batch")
	ErrInvalidID          = errors.New("invalid_id")
	ErrBatchNotFound      = errors.New("settlement_batch_not_found")
	ErrRecordNotFound     = errors.New("settlement_record_not_found")
	ErrTransactionMissing = errors.New("transaction_not_found")
	ErrNotMatched         = errors.New("record_not_matched")
)
