package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/tenantctx"
	"github.com/stayloop/folio/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("folio.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Open(ctx context.Context, req domain.OpenFolioRequest) (domain.Folio, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Folio{}, domain.ErrInvalidTenant
	}

	bookingID, err := snowflake.ParseString(strings.TrimSpace(req.BookingID))
	if err != nil || bookingID == 0 {
		return domain.Folio{}, domain.ErrInvalidBooking
	}

	folioType := domain.FolioType(strings.TrimSpace(req.Type))
	if !folioType.Valid() {
		return domain.Folio{}, domain.ErrInvalidType
	}

	var orgID *snowflake.ID
	if raw := strings.TrimSpace(req.OrgID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.Folio{}, domain.ErrInvalidID
		}
		orgID = &parsed
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := time.Now().UTC()
	folio := domain.Folio{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		BookingID: bookingID,
		OrgID:     orgID,
		Type:      folioType,
		Status:    domain.FolioStatusOpen,
		Currency:  currency,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.Insert(ctx, s.db, &folio)
	if err != nil {
		return domain.Folio{}, err
	}
	if !created {
		return domain.Folio{}, domain.ErrAlreadyExists
	}

	s.log.Info("opened folio",
		zap.String("folio_id", folio.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("type", string(folioType)),
	)

	return folio, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetFolioRequest) (domain.Folio, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Folio{}, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.Folio{}, domain.ErrInvalidID
	}

	folio, err := s.repo.FindByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Folio{}, err
	}
	if folio == nil {
		return domain.Folio{}, domain.ErrNotFound
	}
	return *folio, nil
}

func (s *Service) List(ctx context.Context, req domain.ListFolioRequest) (domain.ListFolioResponse, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ListFolioResponse{}, domain.ErrInvalidTenant
	}

	filter := domain.ListFolioFilter{
		BookingID:   strings.TrimSpace(req.BookingID),
		Type:        strings.TrimSpace(req.Type),
		Status:      strings.TrimSpace(req.Status),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, tenantID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListFolioResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(folio *domain.Folio) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        folio.ID.String(),
			CreatedAt: folio.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := domain.ListFolioResponse{PageInfo: *pageInfo}
	resp.Folios = make([]domain.Folio, 0, len(items))
	for _, item := range items {
		resp.Folios = append(resp.Folios, *item)
	}
	return resp, nil
}

// Close freezes the folio and writes the balance picture at close time into
// its metadata, so the figures survive later reopens and repostings.
func (s *Service) Close(ctx context.Context, req domain.CloseFolioRequest) (domain.Folio, error) {
	notes := strings.TrimSpace(req.Notes)
	return s.transition(ctx, req.ID, domain.FolioStatusOpen, domain.FolioStatusClosed, domain.ErrAlreadyClosed, func(folio *domain.Folio, at time.Time) {
		summary := map[string]any{
			"total_charges":  folio.TotalCharges,
			"total_payments": folio.TotalPayments,
			"balance":        folio.Balance,
			"closed_at":      at.Format(time.RFC3339Nano),
		}
		if notes != "" {
			summary["notes"] = notes
		}
		folio.Metadata["closing_summary"] = summary
	})
}

func (s *Service) Reopen(ctx context.Context, req domain.ReopenFolioRequest) (domain.Folio, error) {
	reason := strings.TrimSpace(req.Reason)
	return s.transition(ctx, req.ID, domain.FolioStatusClosed, domain.FolioStatusOpen, domain.ErrNotClosed, func(folio *domain.Folio, at time.Time) {
		folio.Metadata["reopened_at"] = at.Format(time.RFC3339Nano)
		if reason != "" {
			folio.Metadata["reopen_reason"] = reason
		}
	})
}

func (s *Service) transition(ctx context.Context, rawID string, from, to domain.FolioStatus, conflict error, annotate func(*domain.Folio, time.Time)) (domain.Folio, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.Folio{}, domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return domain.Folio{}, domain.ErrInvalidID
	}

	now := time.Now().UTC()
	var folio *domain.Folio
	err = s.db.Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.UpdateStatus(ctx, tx, tenantID, id, from, to, now)
		if err != nil {
			return err
		}
		if !moved {
			existing, err := s.repo.FindByID(ctx, tx, tenantID, id)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrNotFound
			}
			return conflict
		}

		folio, err = s.repo.FindByID(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		if folio == nil {
			return domain.ErrNotFound
		}

		if folio.Metadata == nil {
			folio.Metadata = datatypes.JSONMap{}
		}
		annotate(folio, now)
		return s.repo.UpdateMetadata(ctx, tx, tenantID, id, folio.Metadata, now)
	})
	if err != nil {
		return domain.Folio{}, err
	}

	s.log.Info("folio status changed",
		zap.String("folio_id", folio.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return *folio, nil
}
