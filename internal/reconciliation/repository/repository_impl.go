package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/reconciliation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, batch *domain.SettlementBatch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO settlement_batches (id, tenant_id, provider, record_count, imported_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.TenantID,
		batch.Provider,
		batch.RecordCount,
		batch.ImportedAt,
		batch.CreatedAt,
	).Error
}

func (r *repo) InsertRecord(ctx context.Context, db *gorm.DB, record *domain.SettlementRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO settlement_records (id, tenant_id, batch_id, amount, channel, provider_ref, occurred_at, matched_transaction_id, confidence, matched_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.TenantID,
		record.BatchID,
		record.Amount,
		record.Channel,
		record.ProviderRef,
		record.OccurredAt,
		record.MatchedTransactionID,
		record.Confidence,
		record.MatchedAt,
		record.CreatedAt,
	).Error
}

func (r *repo) FindBatch(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.SettlementBatch, error) {
	var batch domain.SettlementBatch
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

func (r *repo) FindRecord(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.SettlementRecord, error) {
	var record domain.SettlementRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) ListUnmatched(ctx context.Context, db *gorm.DB, tenantID, batchID snowflake.ID, afterID snowflake.ID, limit int) ([]*domain.SettlementRecord, error) {
	var records []*domain.SettlementRecord
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND batch_id = ? AND matched_transaction_id IS NULL AND id > ?",
			tenantID, batchID, afterID).
		Order("id asc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) SetMatch(ctx context.Context, db *gorm.DB, tenantID, recordID, transactionID snowflake.ID, confidence domain.MatchConfidence, at time.Time, onlyUnmatched bool) (bool, error) {
	stmt := `UPDATE settlement_records SET matched_transaction_id = ?, confidence = ?, matched_at = ? WHERE tenant_id = ? AND id = ?`
	args := []any{transactionID, confidence, at, tenantID, recordID}
	if onlyUnmatched {
		stmt += ` AND matched_transaction_id IS NULL`
	}

	result := db.WithContext(ctx).Exec(stmt, args...)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ClearMatch(ctx context.Context, db *gorm.DB, tenantID, recordID snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE settlement_records SET matched_transaction_id = NULL, confidence = '', matched_at = NULL
		 WHERE tenant_id = ? AND id = ? AND matched_transaction_id IS NOT NULL`,
		tenantID, recordID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountByConfidence(ctx context.Context, db *gorm.DB, tenantID, batchID snowflake.ID) (map[domain.MatchConfidence]int, int, error) {
	type row struct {
		Confidence string
		Count      int
	}
	var rows []row
	err := db.WithContext(ctx).Raw(
		`SELECT confidence, COUNT(*) AS count FROM settlement_records
		 WHERE tenant_id = ? AND batch_id = ?
		 GROUP BY confidence`,
		tenantID, batchID,
	).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[domain.MatchConfidence]int, len(rows))
	total := 0
	for _, r := range rows {
		counts[domain.MatchConfidence(r.Confidence)] = r.Count
		total += r.Count
	}
	return counts, total, nil
}
