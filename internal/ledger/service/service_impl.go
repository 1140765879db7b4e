package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/observability/metrics"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stayloop/folio/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	FolioRepo foliodomain.Repository
	Routing   routingdomain.Service
	Audit     auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	folioRepo foliodomain.Repository
	routing   routingdomain.Service
	audit     auditdomain.Service
	metrics   *metrics.Metrics
}

func New(p Params) domain.Poster {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		folioRepo: p.FolioRepo,
		routing:   p.Routing,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

// Post appends one charge, payment or refund and moves the folio aggregates
// in the same database transaction. Replaying an idempotency key returns the
// original transaction without touching the aggregates.
func (s *Service) Post(ctx context.Context, req domain.PostRequest) (domain.PostResult, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.PostResult{}, domain.ErrInvalidTenant
	}

	txType := domain.TransactionType(strings.TrimSpace(req.Type))
	if !txType.Valid() || txType == domain.TransactionTypeRebate {
		// Rebates carry extra preconditions and go through PostRebate.
		return domain.PostResult{}, domain.ErrInvalidType
	}
	if req.Amount <= 0 {
		return domain.PostResult{}, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.ReferenceType) == "" || strings.TrimSpace(req.ReferenceID) == "" {
		return domain.PostResult{}, domain.ErrMissingReference
	}

	folioID, err := s.resolveFolioID(ctx, req)
	if err != nil {
		return domain.PostResult{}, err
	}

	return s.post(ctx, tenantID, folioID, txType, req.Amount, postFields{
		Description:   strings.TrimSpace(req.Description),
		Department:    strings.TrimSpace(req.Department),
		Channel:       strings.ToLower(strings.TrimSpace(req.Channel)),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
		Metadata:      req.Metadata,
	})
}

// PostRebate derives the rebate magnitude (flat amount or percent of the
// folio's current charges) and posts it under the rebate preconditions.
func (s *Service) PostRebate(ctx context.Context, req domain.RebateRequest) (domain.RebateResult, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.RebateResult{}, domain.ErrInvalidTenant
	}
	if strings.TrimSpace(req.ReferenceType) == "" || strings.TrimSpace(req.ReferenceID) == "" {
		return domain.RebateResult{}, domain.ErrMissingReference
	}

	folioID, err := snowflake.ParseString(strings.TrimSpace(req.FolioID))
	if err != nil {
		return domain.RebateResult{}, domain.ErrInvalidID
	}

	folio, err := s.folioRepo.FindByID(ctx, s.db, tenantID, folioID)
	if err != nil {
		return domain.RebateResult{}, err
	}
	if folio == nil {
		return domain.RebateResult{}, foliodomain.ErrNotFound
	}
	if folio.Type != foliodomain.FolioTypeRoom {
		return domain.RebateResult{}, domain.ErrRebateWrongFolio
	}

	var magnitude int64
	switch req.Mode {
	case domain.RebateModeFlat:
		magnitude = req.Amount
	case domain.RebateModePercent:
		if req.Amount <= 0 || req.Amount > 100 {
			return domain.RebateResult{}, domain.ErrInvalidAmount
		}
		magnitude = folio.TotalCharges * req.Amount / 100
	default:
		return domain.RebateResult{}, domain.ErrInvalidRebateMode
	}
	if magnitude <= 0 {
		return domain.RebateResult{}, domain.ErrInvalidAmount
	}
	if magnitude > folio.TotalCharges {
		return domain.RebateResult{}, domain.ErrRebateExceedsCharges
	}

	result, err := s.post(ctx, tenantID, folioID, domain.TransactionTypeRebate, magnitude, postFields{
		Description:   strings.TrimSpace(req.Reason),
		ReferenceType: strings.TrimSpace(req.ReferenceType),
		ReferenceID:   strings.TrimSpace(req.ReferenceID),
		Metadata: map[string]any{
			"rebate_mode":  string(req.Mode),
			"rebate_input": req.Amount,
		},
	})
	if err != nil {
		return domain.RebateResult{}, err
	}

	return domain.RebateResult{
		Transaction:  result.Transaction,
		RebateAmount: result.Transaction.Magnitude(),
		Balance:      result.Balance,
	}, nil
}

func (s *Service) ListByFolio(ctx context.Context, req domain.ListTransactionRequest) (domain.ListTransactionResponse, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ListTransactionResponse{}, domain.ErrInvalidTenant
	}

	folioID, err := snowflake.ParseString(strings.TrimSpace(req.FolioID))
	if err != nil {
		return domain.ListTransactionResponse{}, domain.ErrInvalidID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByFolio(ctx, s.db, tenantID, folioID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListTransactionResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(tx *domain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        tx.ID.String(),
			CreatedAt: tx.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := domain.ListTransactionResponse{PageInfo: *pageInfo}
	resp.Transactions = make([]domain.Transaction, 0, len(items))
	for _, item := range items {
		resp.Transactions = append(resp.Transactions, *item)
	}
	return resp, nil
}

type postFields struct {
	Description   string
	Department    string
	Channel       string
	ReferenceType string
	ReferenceID   string
	Metadata      map[string]any
}

func (s *Service) resolveFolioID(ctx context.Context, req domain.PostRequest) (snowflake.ID, error) {
	if raw := strings.TrimSpace(req.FolioID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return 0, domain.ErrInvalidID
		}
		return id, nil
	}

	if req.Routing == nil {
		return 0, domain.ErrMissingTarget
	}
	bookingID, err := snowflake.ParseString(strings.TrimSpace(req.Routing.BookingID))
	if err != nil {
		return 0, domain.ErrMissingTarget
	}

	target, err := s.routing.ResolveTarget(ctx, bookingID, routingdomain.ResolveRequest{
		Category:   req.Routing.Category,
		OrgID:      req.Routing.OrgID,
		Department: req.Routing.Department,
	})
	if err != nil {
		return 0, err
	}
	return target.Folio.ID, nil
}

// post runs the indivisible unit: append the transaction, move the folio
// aggregates and write the audit entry, all in one storage transaction.
func (s *Service) post(ctx context.Context, tenantID, folioID snowflake.ID, txType domain.TransactionType, magnitude int64, fields postFields) (domain.PostResult, error) {
	metadata := datatypes.JSONMap{}
	for k, v := range fields.Metadata {
		metadata[k] = v
	}

	entry := domain.Transaction{
		ID:            s.genID.Generate(),
		TenantID:      tenantID,
		FolioID:       folioID,
		Type:          txType,
		Amount:        domain.SignedAmount(txType, magnitude),
		Description:   fields.Description,
		Department:    fields.Department,
		Channel:       fields.Channel,
		ReferenceType: fields.ReferenceType,
		ReferenceID:   fields.ReferenceID,
		ActorID:       tenantctx.ActorID(ctx),
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}

	var result domain.PostResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		folio, err := s.folioRepo.FindByID(ctx, tx, tenantID, folioID)
		if err != nil {
			return err
		}
		if folio == nil {
			return foliodomain.ErrNotFound
		}
		if folio.Status != foliodomain.FolioStatusOpen {
			return domain.ErrFolioClosed
		}
		if txType == domain.TransactionTypeRebate {
			if folio.Type != foliodomain.FolioTypeRoom {
				return domain.ErrRebateWrongFolio
			}
			if magnitude > folio.TotalCharges {
				return domain.ErrRebateExceedsCharges
			}
		}

		inserted, err := s.repo.Insert(ctx, tx, &entry)
		if err != nil {
			return err
		}
		if !inserted {
			// Same source event seen before: hand back the original
			// outcome and leave the aggregates alone.
			existing, err := s.repo.FindByReference(ctx, tx, tenantID, entry.ReferenceType, entry.ReferenceID)
			if err != nil {
				return err
			}
			if existing == nil {
				return gorm.ErrRecordNotFound
			}
			result = domain.PostResult{
				Transaction: *existing,
				Balance:     folio.Balance,
				Replayed:    true,
			}
			return nil
		}

		dCharges, dPayments := domain.AggregateDelta(txType, magnitude)
		applied, err := s.folioRepo.ApplyPosting(ctx, tx, tenantID, folioID, foliodomain.PostingDelta{
			Charges:  dCharges,
			Payments: dPayments,
			At:       entry.CreatedAt,
		})
		if err != nil {
			return err
		}
		if !applied {
			// The guarded update re-checks state under the row lock; a
			// miss means a concurrent close or rebate got there first.
			if txType == domain.TransactionTypeRebate {
				return domain.ErrRebateExceedsCharges
			}
			return domain.ErrFolioClosed
		}

		newBalance := folio.Balance + dCharges - dPayments
		if err := s.audit.Record(ctx, tx, "ledger.post", "folio_transaction", entry.ID.String(), map[string]any{
			"folio_id":       folioID.String(),
			"type":           string(txType),
			"amount":         entry.Amount,
			"balance_before": folio.Balance,
			"balance_after":  newBalance,
		}); err != nil {
			return err
		}

		result = domain.PostResult{
			Transaction: entry,
			Balance:     newBalance,
		}
		return nil
	})
	if err != nil {
		return domain.PostResult{}, err
	}

	if result.Replayed {
		s.metrics.RecordReplay(ctx, string(txType))
		s.log.Info("replayed posting",
			zap.String("folio_id", folioID.String()),
			zap.String("reference_type", entry.ReferenceType),
			zap.String("reference_id", entry.ReferenceID),
		)
		return result, nil
	}

	s.metrics.RecordPosting(ctx, string(txType))
	s.log.Info("posted transaction",
		zap.String("transaction_id", result.Transaction.ID.String()),
		zap.String("folio_id", folioID.String()),
		zap.String("type", string(txType)),
		zap.Int64("amount", result.Transaction.Amount),
		zap.Int64("balance", result.Balance),
	)

	return result, nil
}
