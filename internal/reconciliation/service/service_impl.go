package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/clock"
	"github.com/stayloop/folio/internal/config"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/observability/metrics"
	"github.com/stayloop/folio/internal/reconciliation/domain"
	"github.com/stayloop/folio/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Config     config.Config
	Clock      clock.Clock
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	window     time.Duration
	pageSize   int
	clock      clock.Clock
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconciliation.service"),
		genID:      p.GenID,
		window:     p.Config.Ledger.MatchWindow,
		pageSize:   p.Config.Ledger.MatchPageSize,
		clock:      p.Clock,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		metrics:    p.Metrics,
	}
}

func (s *Service) ImportBatch(ctx context.Context, req domain.ImportBatchRequest) (domain.SettlementBatch, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.SettlementBatch{}, domain.ErrInvalidTenant
	}

	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		return domain.SettlementBatch{}, domain.ErrInvalidProvider
	}
	if len(req.Records) == 0 {
		return domain.SettlementBatch{}, domain.ErrEmptyBatch
	}
	for _, rec := range req.Records {
		if rec.Amount <= 0 {
			return domain.SettlementBatch{}, domain.ErrInvalidAmount
		}
	}

	now := s.clock.Now()
	batch := domain.SettlementBatch{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Provider:    provider,
		RecordCount: len(req.Records),
		ImportedAt:  now,
		CreatedAt:   now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertBatch(ctx, tx, &batch); err != nil {
			return err
		}
		for _, rec := range req.Records {
			record := domain.SettlementRecord{
				ID:          s.genID.Generate(),
				TenantID:    tenantID,
				BatchID:     batch.ID,
				Amount:      rec.Amount,
				Channel:     strings.ToLower(strings.TrimSpace(rec.Channel)),
				ProviderRef: strings.TrimSpace(rec.ProviderRef),
				OccurredAt:  rec.OccurredAt.UTC(),
				CreatedAt:   now,
			}
			if err := s.repo.InsertRecord(ctx, tx, &record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.SettlementBatch{}, err
	}

	s.log.Info("imported settlement batch",
		zap.String("batch_id", batch.ID.String()),
		zap.String("provider", provider),
		zap.Int("records", batch.RecordCount),
	)
	return batch, nil
}

// RunAutoMatch scans the batch's unmatched records in bounded pages so a
// partial failure never forfeits earlier progress. Records already matched
// are skipped, which makes repeated passes idempotent.
func (s *Service) RunAutoMatch(ctx context.Context, req domain.RunMatchRequest) (domain.MatchSummary, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.MatchSummary{}, domain.ErrInvalidTenant
	}

	batchID, err := snowflake.ParseString(strings.TrimSpace(req.BatchID))
	if err != nil {
		return domain.MatchSummary{}, domain.ErrInvalidID
	}

	batch, err := s.repo.FindBatch(ctx, s.db, tenantID, batchID)
	if err != nil {
		return domain.MatchSummary{}, err
	}
	if batch == nil {
		return domain.MatchSummary{}, domain.ErrBatchNotFound
	}

	summary := domain.MatchSummary{BatchID: batchID}
	var afterID snowflake.ID
	for {
		records, err := s.repo.ListUnmatched(ctx, s.db, tenantID, batchID, afterID, s.pageSize)
		if err != nil {
			return summary, err
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			afterID = record.ID
			summary.Scanned++

			confidence, err := s.matchRecord(ctx, tenantID, record)
			if err != nil {
				s.log.Warn("auto-match failed for record",
					zap.String("record_id", record.ID.String()),
					zap.Error(err),
				)
				summary.Unmatched++
				continue
			}
			switch confidence {
			case domain.MatchExact:
				summary.Exact++
			case domain.MatchProbable:
				summary.Probable++
			default:
				summary.Unmatched++
			}
		}

		if len(records) < s.pageSize {
			break
		}
	}

	s.log.Info("auto-match pass complete",
		zap.String("batch_id", batchID.String()),
		zap.Int("scanned", summary.Scanned),
		zap.Int("exact", summary.Exact),
		zap.Int("probable", summary.Probable),
		zap.Int("unmatched", summary.Unmatched),
	)
	return summary, nil
}

// matchRecord classifies one record: a candidate whose reference id equals
// the record's provider reference is exact; otherwise the candidate closest
// in time inside the window is probable.
func (s *Service) matchRecord(ctx context.Context, tenantID snowflake.ID, record *domain.SettlementRecord) (domain.MatchConfidence, error) {
	magnitude := record.Amount
	if magnitude < 0 {
		magnitude = -magnitude
	}

	candidates, err := s.ledgerRepo.FindMatchCandidates(ctx, s.db, tenantID, magnitude, record.Channel, record.OccurredAt, s.window)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", nil
	}

	var chosen *ledgerdomain.Transaction
	confidence := domain.MatchProbable
	closest := time.Duration(-1)
	for _, candidate := range candidates {
		if candidate.ReferenceID == record.ProviderRef {
			chosen = candidate
			confidence = domain.MatchExact
			break
		}
		distance := candidate.CreatedAt.Sub(record.OccurredAt)
		if distance < 0 {
			distance = -distance
		}
		if closest < 0 || distance < closest {
			chosen = candidate
			closest = distance
		}
	}
	if chosen == nil {
		return "", nil
	}

	linked, err := s.repo.SetMatch(ctx, s.db, tenantID, record.ID, chosen.ID, confidence, s.clock.Now(), true)
	if err != nil {
		return "", err
	}
	if !linked {
		// A concurrent pass or operator matched it first.
		return "", nil
	}

	s.metrics.RecordMatch(ctx, string(confidence))
	return confidence, nil
}

func (s *Service) ManualMatch(ctx context.Context, req domain.ManualMatchRequest) (domain.SettlementRecord, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.SettlementRecord{}, domain.ErrInvalidTenant
	}

	recordID, err := snowflake.ParseString(strings.TrimSpace(req.RecordID))
	if err != nil {
		return domain.SettlementRecord{}, domain.ErrInvalidID
	}
	transactionID, err := snowflake.ParseString(strings.TrimSpace(req.TransactionID))
	if err != nil {
		return domain.SettlementRecord{}, domain.ErrInvalidID
	}

	record, err := s.repo.FindRecord(ctx, s.db, tenantID, recordID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if record == nil {
		return domain.SettlementRecord{}, domain.ErrRecordNotFound
	}

	var tx ledgerdomain.Transaction
	err = s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, transactionID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SettlementRecord{}, domain.ErrTransactionMissing
		}
		return domain.SettlementRecord{}, err
	}

	// Manual always overrides whatever the automatic pass decided.
	if _, err := s.repo.SetMatch(ctx, s.db, tenantID, recordID, transactionID, domain.MatchManual, s.clock.Now(), false); err != nil {
		return domain.SettlementRecord{}, err
	}
	s.metrics.RecordMatch(ctx, string(domain.MatchManual))

	updated, err := s.repo.FindRecord(ctx, s.db, tenantID, recordID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	return *updated, nil
}

func (s *Service) Unmatch(ctx context.Context, rawRecordID string) (domain.SettlementRecord, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.SettlementRecord{}, domain.ErrInvalidTenant
	}

	recordID, err := snowflake.ParseString(strings.TrimSpace(rawRecordID))
	if err != nil {
		return domain.SettlementRecord{}, domain.ErrInvalidID
	}

	cleared, err := s.repo.ClearMatch(ctx, s.db, tenantID, recordID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	if !cleared {
		record, err := s.repo.FindRecord(ctx, s.db, tenantID, recordID)
		if err != nil {
			return domain.SettlementRecord{}, err
		}
		if record == nil {
			return domain.SettlementRecord{}, domain.ErrRecordNotFound
		}
		return domain.SettlementRecord{}, domain.ErrNotMatched
	}

	record, err := s.repo.FindRecord(ctx, s.db, tenantID, recordID)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	return *record, nil
}

func (s *Service) Summary(ctx context.Context, rawBatchID string) (domain.MatchSummary, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.MatchSummary{}, domain.ErrInvalidTenant
	}

	batchID, err := snowflake.ParseString(strings.TrimSpace(rawBatchID))
	if err != nil {
		return domain.MatchSummary{}, domain.ErrInvalidID
	}

	batch, err := s.repo.FindBatch(ctx, s.db, tenantID, batchID)
	if err != nil {
		return domain.MatchSummary{}, err
	}
	if batch == nil {
		return domain.MatchSummary{}, domain.ErrBatchNotFound
	}

	counts, total, err := s.repo.CountByConfidence(ctx, s.db, tenantID, batchID)
	if err != nil {
		return domain.MatchSummary{}, err
	}

	return domain.MatchSummary{
		BatchID:   batchID,
		Scanned:   total,
		Exact:     counts[domain.MatchExact],
		Probable:  counts[domain.MatchProbable],
		Manual:    counts[domain.MatchManual],
		Unmatched: counts[domain.MatchConfidence("")],
	}, nil
}
