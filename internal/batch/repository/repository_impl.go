package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/batch/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, batch *domain.BatchSnapshot) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO batch_snapshots (id, tenant_id, type, date_key, status, opened_by, opened_at, closed_at, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, type, date_key) DO NOTHING`,
		batch.ID,
		batch.TenantID,
		batch.Type,
		batch.DateKey,
		batch.Status,
		batch.OpenedBy,
		batch.OpenedAt,
		batch.ClosedAt,
		batch.Metadata,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.BatchSnapshot, error) {
	var batch domain.BatchSnapshot
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repo) FindByDateKey(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, batchType domain.BatchType, dateKey string) (*domain.BatchSnapshot, error) {
	var batch domain.BatchSnapshot
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND date_key = ?", tenantID, batchType, dateKey).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, from, to domain.BatchStatus, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE batch_snapshots SET status = ?, updated_at = ? WHERE tenant_id = ? AND id = ? AND status = ?`,
		to, at, tenantID, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Seal(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, status domain.BatchStatus, metadata datatypes.JSONMap, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE batch_snapshots SET status = ?, metadata = ?, closed_at = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		status, metadata, at, at, tenantID, id,
	).Error
}
