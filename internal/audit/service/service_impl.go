package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/audit/domain"
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
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, action, targetType, targetID string, metadata map[string]any) error {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}
	if db == nil {
		db = s.db
	}

	payload := datatypes.JSONMap{}
	for k, v := range metadata {
		payload[k] = v
	}

	entry := domain.AuditLog{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		ActorID:    tenantctx.ActorID(ctx),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   payload,
		CreatedAt:  time.Now().UTC(),
	}

	return s.repo.Insert(ctx, db, &entry)
}

func (s *Service) List(ctx context.Context, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidTenant
	}
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidTimeRange
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	req.PageSize = pageSize

	items, err := s.repo.List(ctx, s.db, tenantID, req)
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(entry *domain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	resp := domain.ListAuditLogResponse{PageInfo: *pageInfo}
	resp.AuditLogs = make([]domain.AuditLog, 0, len(items))
	for _, item := range items {
		resp.AuditLogs = append(resp.AuditLogs, *item)
	}
	return resp, nil
}
