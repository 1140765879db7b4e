package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostingDelta is one aggregate adjustment applied by the transaction poster.
// Guards re-check folio state inside the storage engine's write lock so
// concurrent postings never act on a stale aggregate pair.
type PostingDelta struct {
	Charges  int64
	Payments int64
	At       time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, folio *Folio) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Folio, error)
	FindByBookingAndType(ctx context.Context, db *gorm.DB, tenantID, bookingID snowflake.ID, folioType FolioType) (*Folio, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListFolioFilter, page pagination.Pagination) ([]*Folio, error)
	// ApplyPosting adjusts the aggregate columns relative to their stored
	// values. The update only lands while the folio is open and the
	// resulting total_charges stays non-negative; it reports whether a row
	// was touched.
	ApplyPosting(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, delta PostingDelta) (bool, error)
	// UpdateStatus transitions from -> to and reports whether a row matched.
	UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to FolioStatus, at time.Time) (bool, error)
	UpdateMetadata(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, metadata datatypes.JSONMap, at time.Time) error
	// ListZeroChargeOpen returns open folios of the given type with no
	// charges yet, paged by id for recovery scans.
	ListZeroChargeOpen(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, folioType FolioType, afterID snowflake.ID, limit int) ([]*Folio, error)
}
