package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/pkg/db/pagination"
	"gorm.io/gorm"
)

// RoutingContext routes a posting that names no folio directly.
type RoutingContext struct {
	BookingID  string
	Category   string
	OrgID      string
	Department string
}

// PostRequest posts one charge, payment or refund. Amount is the unsigned
// magnitude; the poster assigns the sign from Type.
type PostRequest struct {
	FolioID       string
	Routing       *RoutingContext
	Type          string
	Amount        int64
	Description   string
	Department    string
	Channel       string
	ReferenceType string
	ReferenceID   string
	Metadata      map[string]any
}

// RebateMode selects how a rebate magnitude is derived.
type RebateMode string

const (
	RebateModeFlat    RebateMode = "flat"
	RebateModePercent RebateMode = "percent"
)

// RebateRequest posts a goodwill rebate against a room folio.
type RebateRequest struct {
	FolioID       string
	Mode          RebateMode
	Amount        int64
	Reason        string
	ReferenceType string
	ReferenceID   string
}

// PostResult reports the accepted (or replayed) transaction and the folio's
// balance after it.
type PostResult struct {
	Transaction Transaction `json:"transaction"`
	Balance     int64       `json:"balance"`
	Replayed    bool        `json:"replayed"`
}

// RebateResult additionally reports the derived rebate magnitude.
type RebateResult struct {
	Transaction  Transaction `json:"transaction"`
	RebateAmount int64       `json:"rebate_amount"`
	Balance      int64       `json:"balance"`
}

type ListTransactionRequest struct {
	FolioID   string
	PageToken string
	PageSize  int
}

type ListTransactionResponse struct {
	pagination.PageInfo
	Transactions []Transaction `json:"transactions"`
}

type Repository interface {
	// Insert appends the transaction; a duplicate idempotency key leaves
	// the log untouched and reports false.
	Insert(ctx context.Context, db *gorm.DB, tx *Transaction) (bool, error)
	FindByReference(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, referenceType, referenceID string) (*Transaction, error)
	ListByFolio(ctx context.Context, db *gorm.DB, tenantID, folioID snowflake.ID, page pagination.Pagination) ([]*Transaction, error)
	// SumByChannel totals signed amounts for a channel inside a window.
	SumByChannel(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, channel string, from, to time.Time) (int64, error)
	// FindMatchCandidates returns transactions of the given magnitude and
	// channel whose creation time lies within the window, closest first.
	FindMatchCandidates(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, magnitude int64, channel string, around time.Time, window time.Duration) ([]*Transaction, error)
	// RevenueByFolioType sums charge and rebate amounts per folio type
	// inside a window.
	RevenueByFolioType(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time) (map[string]int64, error)
}

// Poster is the only code path permitted to mutate folio aggregates.
type Poster interface {
	Post(context.Context, PostRequest) (PostResult, error)
	PostRebate(context.Context, RebateRequest) (RebateResult, error)
	ListByFolio(context.Context, ListTransactionRequest) (ListTransactionResponse, error)
}

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidType          = errors.New("invalid_transaction_type")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidID            = errors.New("invalid_id")
	ErrMissingReference     = errors.New("missing_reference")
	ErrMissingTarget        = errors.New("missing_target_folio")
	ErrFolioClosed          = errors.New("folio_closed")
	ErrRebateExceedsCharges = errors.New("rebate_exceeds_charges")
	ErrRebateWrongFolio     = errors.New("rebate_requires_room_folio")
	ErrInvalidRebateMode    = errors.New("invalid_rebate_mode")
)
