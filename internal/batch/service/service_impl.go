package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	"github.com/stayloop/folio/internal/batch/domain"
	"github.com/stayloop/folio/internal/clock"
	"github.com/stayloop/folio/internal/config"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/observability/metrics"
	"github.com/stayloop/folio/internal/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const cashChannel = "cash"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Config     config.Config
	Clock      clock.Clock
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	Audit      auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	epsilon    int64
	clock      clock.Clock
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	audit      auditdomain.Service
	metrics    *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("batch.service"),
		genID:      p.GenID,
		epsilon:    p.Config.Ledger.CashVarianceEpsilon,
		clock:      p.Clock,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		audit:      p.Audit,
		metrics:    p.Metrics,
	}
}

// OpenSession starts a cash-drawer session for the calling actor.
func (s *Service) OpenSession(ctx context.Context, req domain.OpenSessionRequest) (domain.BatchSnapshot, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.BatchSnapshot{}, domain.ErrInvalidTenant
	}
	if req.OpeningBalance < 0 {
		return domain.BatchSnapshot{}, domain.ErrInvalidBalance
	}

	now := s.clock.Now()
	batch := domain.BatchSnapshot{
		ID:       s.genID.Generate(),
		TenantID: tenantID,
		Type:     domain.BatchTypeCashSession,
		Status:   domain.BatchStatusOpen,
		OpenedBy: tenantctx.ActorID(ctx),
		OpenedAt: now,
		Metadata: datatypes.JSONMap{
			"opening_balance": req.OpeningBalance,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Notes != "" {
		batch.Metadata["notes"] = req.Notes
	}

	if _, err := s.repo.Insert(ctx, s.db, &batch); err != nil {
		return domain.BatchSnapshot{}, err
	}

	s.log.Info("cash session opened",
		zap.String("batch_id", batch.ID.String()),
		zap.Int64("opening_balance", req.OpeningBalance),
	)
	return batch, nil
}

// CloseSession counts the drawer against the ledger. Expected balance is the
// opening float plus signed cash movement since the session opened; variance
// is declared minus expected and gets flagged past the configured epsilon.
//
// The session moves open -> closing before any aggregate work, so a failure
// never leaves a half-written closed snapshot; it is sealed as failed with
// the error recorded instead.
func (s *Service) CloseSession(ctx context.Context, req domain.CloseSessionRequest) (domain.CloseSessionResult, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.CloseSessionResult{}, domain.ErrInvalidTenant
	}
	sessionID, err := snowflake.ParseString(req.SessionID)
	if err != nil {
		return domain.CloseSessionResult{}, domain.ErrInvalidID
	}

	batch, err := s.repo.FindByID(ctx, s.db, tenantID, sessionID)
	if err != nil {
		return domain.CloseSessionResult{}, err
	}
	if batch == nil {
		return domain.CloseSessionResult{}, domain.ErrNotFound
	}
	if batch.Type != domain.BatchTypeCashSession {
		return domain.CloseSessionResult{}, domain.ErrWrongBatchType
	}

	now := s.clock.Now()
	moved, err := s.repo.TransitionStatus(ctx, s.db, tenantID, sessionID, domain.BatchStatusOpen, domain.BatchStatusClosing, now)
	if err != nil {
		return domain.CloseSessionResult{}, err
	}
	if !moved {
		if batch.Status == domain.BatchStatusClosed {
			return domain.CloseSessionResult{}, domain.ErrAlreadyClosed
		}
		return domain.CloseSessionResult{}, domain.ErrNotOpen
	}

	opening := metadataInt64(batch.Metadata, "opening_balance")
	cashMoved, err := s.ledgerRepo.SumByChannel(ctx, s.db, tenantID, cashChannel, batch.OpenedAt, now)
	if err != nil {
		return domain.CloseSessionResult{}, s.sealFailed(ctx, tenantID, sessionID, domain.BatchTypeCashSession, err)
	}

	// Payments are stored negative; cash collected shows up as -cashMoved.
	expected := opening - cashMoved
	variance := req.DeclaredBalance - expected
	flagged := variance > s.epsilon || variance < -s.epsilon

	meta := datatypes.JSONMap{
		"opening_balance":  opening,
		"expected_balance": expected,
		"declared_balance": req.DeclaredBalance,
		"variance":         variance,
		"variance_flagged": flagged,
	}
	if req.Notes != "" {
		meta["notes"] = req.Notes
	}

	closed := *batch
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Seal(ctx, tx, tenantID, sessionID, domain.BatchStatusClosed, meta, now); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, "batch.close_session", "batch_snapshot", sessionID.String(), map[string]any{
			"expected_balance": expected,
			"declared_balance": req.DeclaredBalance,
			"variance":         variance,
			"variance_flagged": flagged,
		})
	})
	if err != nil {
		return domain.CloseSessionResult{}, s.sealFailed(ctx, tenantID, sessionID, domain.BatchTypeCashSession, err)
	}

	closed.Status = domain.BatchStatusClosed
	closed.Metadata = meta
	closed.ClosedAt = &now
	closed.UpdatedAt = now

	s.metrics.RecordBatchClose(ctx, string(domain.BatchTypeCashSession), string(domain.BatchStatusClosed))
	if flagged {
		s.log.Warn("cash session variance over threshold",
			zap.String("batch_id", sessionID.String()),
			zap.Int64("variance", variance),
		)
	} else {
		s.log.Info("cash session closed",
			zap.String("batch_id", sessionID.String()),
			zap.Int64("variance", variance),
		)
	}

	return domain.CloseSessionResult{
		Batch:           closed,
		ExpectedBalance: expected,
		DeclaredBalance: req.DeclaredBalance,
		Variance:        variance,
		VarianceFlagged: flagged,
	}, nil
}

// RunNightAudit closes the given business day. The (tenant, type, date) key
// makes the run idempotent: a rerun against a closed day returns the stored
// snapshot untouched, while a failed day is retried from scratch.
func (s *Service) RunNightAudit(ctx context.Context, req domain.RunNightAuditRequest) (domain.NightAuditResult, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.NightAuditResult{}, domain.ErrInvalidTenant
	}

	now := s.clock.Now()
	dateKey := req.AuditDate
	if dateKey == "" {
		dateKey = now.AddDate(0, 0, -1).Format("2006-01-02")
	}
	day, err := time.ParseInLocation("2006-01-02", dateKey, time.UTC)
	if err != nil {
		return domain.NightAuditResult{}, domain.ErrInvalidDate
	}

	batch := domain.BatchSnapshot{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Type:      domain.BatchTypeNightAudit,
		DateKey:   &dateKey,
		Status:    domain.BatchStatusClosing,
		OpenedBy:  tenantctx.ActorID(ctx),
		OpenedAt:  now,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, &batch)
	if err != nil {
		return domain.NightAuditResult{}, err
	}
	if !inserted {
		existing, err := s.repo.FindByDateKey(ctx, s.db, tenantID, domain.BatchTypeNightAudit, dateKey)
		if err != nil {
			return domain.NightAuditResult{}, err
		}
		if existing == nil {
			return domain.NightAuditResult{}, domain.ErrNotFound
		}
		switch existing.Status {
		case domain.BatchStatusClosed:
			return auditResultFromSnapshot(existing, dateKey, true), nil
		case domain.BatchStatusFailed:
			// Retry in place: reclaim the failed row and recompute.
			moved, err := s.repo.TransitionStatus(ctx, s.db, tenantID, existing.ID, domain.BatchStatusFailed, domain.BatchStatusClosing, now)
			if err != nil {
				return domain.NightAuditResult{}, err
			}
			if !moved {
				return domain.NightAuditResult{}, domain.ErrNotOpen
			}
			batch = *existing
			batch.Status = domain.BatchStatusClosing
		default:
			// Another run holds the day right now.
			return domain.NightAuditResult{}, domain.ErrNotOpen
		}
	}

	from := day
	to := day.AddDate(0, 0, 1)
	revenue, err := s.ledgerRepo.RevenueByFolioType(ctx, s.db, tenantID, from, to)
	if err != nil {
		return domain.NightAuditResult{}, s.sealFailed(ctx, tenantID, batch.ID, domain.BatchTypeNightAudit, err)
	}

	var total int64
	byType := make(map[string]interface{}, len(revenue))
	for folioType, amount := range revenue {
		total += amount
		byType[folioType] = amount
	}

	meta := datatypes.JSONMap{
		"audit_date":            dateKey,
		"revenue_by_folio_type": byType,
		"total_revenue":         total,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Seal(ctx, tx, tenantID, batch.ID, domain.BatchStatusClosed, meta, now); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, "batch.night_audit", "batch_snapshot", batch.ID.String(), map[string]any{
			"audit_date":    dateKey,
			"total_revenue": total,
		})
	})
	if err != nil {
		return domain.NightAuditResult{}, s.sealFailed(ctx, tenantID, batch.ID, domain.BatchTypeNightAudit, err)
	}

	batch.Status = domain.BatchStatusClosed
	batch.Metadata = meta
	batch.ClosedAt = &now
	batch.UpdatedAt = now

	s.metrics.RecordBatchClose(ctx, string(domain.BatchTypeNightAudit), string(domain.BatchStatusClosed))
	s.log.Info("night audit closed",
		zap.String("batch_id", batch.ID.String()),
		zap.String("audit_date", dateKey),
		zap.Int64("total_revenue", total),
	)

	return domain.NightAuditResult{
		Batch:          batch,
		AuditDate:      dateKey,
		RevenueByFolio: revenue,
		TotalRevenue:   total,
		AlreadyClosed:  false,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.BatchSnapshot, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.BatchSnapshot{}, domain.ErrInvalidTenant
	}
	batchID, err := snowflake.ParseString(id)
	if err != nil {
		return domain.BatchSnapshot{}, domain.ErrInvalidID
	}
	batch, err := s.repo.FindByID(ctx, s.db, tenantID, batchID)
	if err != nil {
		return domain.BatchSnapshot{}, err
	}
	if batch == nil {
		return domain.BatchSnapshot{}, domain.ErrNotFound
	}
	return *batch, nil
}

// sealFailed records the close failure on the snapshot and returns the
// original error for the caller.
func (s *Service) sealFailed(ctx context.Context, tenantID, id snowflake.ID, batchType domain.BatchType, cause error) error {
	now := s.clock.Now()
	meta := datatypes.JSONMap{"error": cause.Error()}
	if err := s.repo.Seal(ctx, s.db, tenantID, id, domain.BatchStatusFailed, meta, now); err != nil {
		s.log.Error("sealing failed batch",
			zap.String("batch_id", id.String()),
			zap.Error(err),
		)
	}
	s.metrics.RecordBatchClose(ctx, string(batchType), string(domain.BatchStatusFailed))
	s.log.Error("batch close failed",
		zap.String("batch_id", id.String()),
		zap.String("batch_type", string(batchType)),
		zap.Error(cause),
	)
	return cause
}

func auditResultFromSnapshot(batch *domain.BatchSnapshot, dateKey string, alreadyClosed bool) domain.NightAuditResult {
	result := domain.NightAuditResult{
		Batch:          *batch,
		AuditDate:      dateKey,
		RevenueByFolio: map[string]int64{},
		AlreadyClosed:  alreadyClosed,
	}
	if raw, ok := batch.Metadata["revenue_by_folio_type"].(map[string]interface{}); ok {
		for folioType, v := range raw {
			result.RevenueByFolio[folioType] = toInt64(v)
		}
	}
	result.TotalRevenue = metadataInt64(batch.Metadata, "total_revenue")
	return result
}

func metadataInt64(meta datatypes.JSONMap, key string) int64 {
	if meta == nil {
		return 0
	}
	return toInt64(meta[key])
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		parsed, _ := n.Int64()
		return parsed
	default:
		return 0
	}
}
