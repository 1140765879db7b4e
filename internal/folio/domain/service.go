package domain

import (
	"context"
	"errors"
	"time"

	"github.com/stayloop/folio/pkg/db/pagination"
)

type OpenFolioRequest struct {
	BookingID string
	Type      string
	OrgID     string
	Currency  string
	Metadata  map[string]any
}

type GetFolioRequest struct {
	ID string
}

type ListFolioRequest struct {
	PageToken   string
	PageSize    int
	BookingID   string
	Type        string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListFolioFilter struct {
	BookingID   string
	Type        string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListFolioResponse struct {
	pagination.PageInfo
	Folios []Folio `json:"folios"`
}

type CloseFolioRequest struct {
	ID    string
	Notes string
}

type ReopenFolioRequest struct {
	ID     string
	Reason string
}

type Service interface {
	Open(context.Context, OpenFolioRequest) (Folio, error)
	GetByID(context.Context, GetFolioRequest) (Folio, error)
	List(context.Context, ListFolioRequest) (ListFolioResponse, error)
	Close(context.Context, CloseFolioRequest) (Folio, error)
	Reopen(context.Context, ReopenFolioRequest) (Folio, error)
}

var (
	ErrInvalidTenant  = errors.New("invalid_tenant")
	ErrInvalidBooking = errors.New("invalid_booking")
	ErrInvalidType    = errors.New("invalid_folio_type")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("folio_not_found")
	ErrAlreadyExists  = errors.New("folio_already_exists")
	ErrAlreadyClosed  = errors.New("folio_already_closed")
	ErrNotClosed      = errors.New("folio_not_closed")
)
