package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateStayRequest struct {
	GuestName        string
	ContractedAmount int64
	Currency         string
}

type CheckInRequest struct {
	ID string
}

type CheckOutRequest struct {
	ID string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, stay *Stay) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Stay, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to StayStatus, at time.Time) (bool, error)
	// ListInHouse pages through occupied stays by id for recovery scans.
	ListInHouse(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, afterID snowflake.ID, limit int) ([]*Stay, error)
}

type Service interface {
	Create(context.Context, CreateStayRequest) (Stay, error)
	// CheckIn moves the stay in-house and opens its room folio.
	CheckIn(context.Context, CheckInRequest) (Stay, error)
	CheckOut(context.Context, CheckOutRequest) (Stay, error)
	GetByID(ctx context.Context, id string) (Stay, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidGuest  = errors.New("invalid_guest_name")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("stay_not_found")
	ErrWrongStatus   = errors.New("stay_wrong_status")
)
