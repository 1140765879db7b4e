package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/stay/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, stay *domain.Stay) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stays (id, tenant_id, guest_name, status, contracted_amount, currency, check_in_at, check_out_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stay.ID,
		stay.TenantID,
		stay.GuestName,
		stay.Status,
		stay.ContractedAmount,
		stay.Currency,
		stay.CheckInAt,
		stay.CheckOutAt,
		stay.CreatedAt,
		stay.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Stay, error) {
	var stay domain.Stay
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&stay).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &stay, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to domain.StayStatus, at time.Time) (bool, error) {
	var column string
	switch to {
	case domain.StayStatusInHouse:
		column = "check_in_at"
	case domain.StayStatusCheckedOut:
		column = "check_out_at"
	}

	stmt := `UPDATE stays SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ? AND status = ?`
	args := []any{to, at, tenantID, id, from}
	if column != "" {
		stmt = `UPDATE stays SET status = ?, ` + column + ` = ?, updated_at = ? WHERE tenant_id = ? AND id = ? AND status = ?`
		args = []any{to, at, at, tenantID, id, from}
	}

	result := db.WithContext(ctx).Exec(stmt, args...)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListInHouse(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, afterID snowflake.ID, limit int) ([]*domain.Stay, error) {
	var stays []*domain.Stay
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND id > ?", tenantID, domain.StayStatusInHouse, afterID).
		Order("id asc").
		Limit(limit).
		Find(&stays).Error
	if err != nil {
		return nil, err
	}
	return stays, nil
}
