package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/pkg/db/option"
	"github.com/stayloop/folio/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, folio *domain.Folio) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO folios (id, tenant_id, booking_id, org_id, type, status, total_charges, total_payments, balance, currency, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, booking_id, type) DO NOTHING`,
		folio.ID,
		folio.TenantID,
		folio.BookingID,
		folio.OrgID,
		folio.Type,
		folio.Status,
		folio.TotalCharges,
		folio.TotalPayments,
		folio.Balance,
		folio.Currency,
		folio.Metadata,
		folio.CreatedAt,
		folio.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Folio, error) {
	var folio domain.Folio
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&folio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &folio, nil
}

func (r *repo) FindByBookingAndType(ctx context.Context, db *gorm.DB, tenantID, bookingID snowflake.ID, folioType domain.FolioType) (*domain.Folio, error) {
	var folio domain.Folio
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND booking_id = ? AND type = ?", tenantID, bookingID, folioType).
		First(&folio).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &folio, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListFolioFilter, page pagination.Pagination) ([]*domain.Folio, error) {
	var folios []*domain.Folio
	stmt := db.WithContext(ctx).
		Model(&domain.Folio{}).
		Where("tenant_id = ?", tenantID)
	if filter.BookingID != "" {
		stmt = stmt.Where("booking_id = ?", filter.BookingID)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&folios).Error
	if err != nil {
		return nil, err
	}
	return folios, nil
}

func (r *repo) ApplyPosting(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, delta domain.PostingDelta) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE folios
		 SET total_charges = total_charges + ?,
		     total_payments = total_payments + ?,
		     balance = balance + ?,
		     updated_at = ?
		 WHERE tenant_id = ? AND id = ?
		   AND status = ?
		   AND total_charges + ? >= 0`,
		delta.Charges,
		delta.Payments,
		delta.Charges-delta.Payments,
		delta.At,
		tenantID,
		id,
		domain.FolioStatusOpen,
		delta.Charges,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to domain.FolioStatus, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE folios SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ? AND status = ?`,
		to, at, tenantID, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateMetadata(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, metadata datatypes.JSONMap, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE folios SET metadata = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		metadata, at, tenantID, id,
	).Error
}

func (r *repo) ListZeroChargeOpen(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, folioType domain.FolioType, afterID snowflake.ID, limit int) ([]*domain.Folio, error) {
	var folios []*domain.Folio
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND status = ? AND total_charges = 0 AND id > ?",
			tenantID, folioType, domain.FolioStatusOpen, afterID).
		Order("id asc").
		Limit(limit).
		Find(&folios).Error
	if err != nil {
		return nil, err
	}
	return folios, nil
}
