package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/pkg/db/option"
	"github.com/stayloop/folio/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tx *domain.Transaction) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO folio_transactions (id, tenant_id, folio_id, type, amount, description, department, channel, reference_type, reference_id, actor_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, reference_type, reference_id) DO NOTHING`,
		tx.ID,
		tx.TenantID,
		tx.FolioID,
		tx.Type,
		tx.Amount,
		tx.Description,
		tx.Department,
		tx.Channel,
		tx.ReferenceType,
		tx.ReferenceID,
		tx.ActorID,
		tx.Metadata,
		tx.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, referenceType, referenceID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND reference_type = ? AND reference_id = ?", tenantID, referenceType, referenceID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *repo) ListByFolio(ctx context.Context, db *gorm.DB, tenantID, folioID snowflake.ID, page pagination.Pagination) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("tenant_id = ? AND folio_id = ?", tenantID, folioID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) SumByChannel(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, channel string, from, to time.Time) (int64, error) {
	var total *int64
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(amount) FROM folio_transactions
		 WHERE tenant_id = ? AND channel = ? AND created_at >= ? AND created_at < ?`,
		tenantID, channel, from, to,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repo) FindMatchCandidates(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, magnitude int64, channel string, around time.Time, window time.Duration) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	stmt := db.WithContext(ctx).
		Where("tenant_id = ? AND type = ? AND created_at >= ? AND created_at <= ?",
			tenantID, domain.TransactionTypePayment, around.Add(-window), around.Add(window)).
		Where("amount = ? OR amount = ?", magnitude, -magnitude)
	if channel != "" {
		stmt = stmt.Where("channel = ?", channel)
	}
	err := stmt.
		Order("created_at asc, id asc").
		Limit(50).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repo) RevenueByFolioType(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, from, to time.Time) (map[string]int64, error) {
	type row struct {
		FolioType string
		Total     int64
	}
	var rows []row
	err := db.WithContext(ctx).Raw(
		`SELECT f.type AS folio_type, SUM(t.amount) AS total
		 FROM folio_transactions t
		 JOIN folios f ON f.id = t.folio_id AND f.tenant_id = t.tenant_id
		 WHERE t.tenant_id = ? AND t.type IN (?, ?) AND t.created_at >= ? AND t.created_at < ?
		 GROUP BY f.type`,
		tenantID,
		domain.TransactionTypeCharge,
		domain.TransactionTypeRebate,
		from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.FolioType] = r.Total
	}
	return result, nil
}
