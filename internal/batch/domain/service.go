package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OpenSessionRequest struct {
	OpeningBalance int64
	Notes          string
}

type CloseSessionRequest struct {
	SessionID       string
	DeclaredBalance int64
	Notes           string
}

// CloseSessionResult reports the drawer count against the ledger.
type CloseSessionResult struct {
	Batch           BatchSnapshot `json:"batch"`
	ExpectedBalance int64         `json:"expected_balance"`
	DeclaredBalance int64         `json:"declared_balance"`
	Variance        int64         `json:"variance"`
	VarianceFlagged bool          `json:"variance_flagged"`
}

type RunNightAuditRequest struct {
	// AuditDate is the period day, formatted 2006-01-02. Empty means the
	// previous calendar day.
	AuditDate string
}

// NightAuditResult is the immutable period aggregate.
type NightAuditResult struct {
	Batch          BatchSnapshot    `json:"batch"`
	AuditDate      string           `json:"audit_date"`
	RevenueByFolio map[string]int64 `json:"revenue_by_folio_type"`
	TotalRevenue   int64            `json:"total_revenue"`
	AlreadyClosed  bool             `json:"already_closed"`
}

type Repository interface {
	// Insert appends the snapshot; a duplicate date key leaves the table
	// untouched and reports false.
	Insert(ctx context.Context, db *gorm.DB, batch *BatchSnapshot) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*BatchSnapshot, error)
	FindByDateKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchType BatchType, dateKey string) (*BatchSnapshot, error)
	// TransitionStatus moves from -> to and reports whether a row matched.
	TransitionStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to BatchStatus, at time.Time) (bool, error)
	// Seal writes the close-time aggregate and final status in one update.
	Seal(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status BatchStatus, metadata datatypes.JSONMap, at time.Time) error
}

type Service interface {
	OpenSession(context.Context, OpenSessionRequest) (BatchSnapshot, error)
	CloseSession(context.Context, CloseSessionRequest) (CloseSessionResult, error)
	RunNightAudit(context.Context, RunNightAuditRequest) (NightAuditResult, error)
	GetByID(ctx context.Context, id string) (BatchSnapshot, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidDate    = errors.New("invalid_audit_date")
	ErrInvalidBalance = errors.New("invalid_balance")
	ErrNotFound       = errors.New("batch_not_found")
	ErrNotOpen        = errors.New("batch_not_open")
	ErrAlreadyClosed  = errors.New("batch_already_closed")
	ErrWrongBatchType = errors.New("wrong_batch_type")
)
