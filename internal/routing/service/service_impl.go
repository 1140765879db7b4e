package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/routing/domain"
	"github.com/stayloop/folio/internal/tenantctx"
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
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	folioRepo foliodomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("routing.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		folioRepo: p.FolioRepo,
	}
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (domain.RoutingRule, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.RoutingRule{}, domain.ErrInvalidTenant
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		return domain.RoutingRule{}, domain.ErrInvalidCategory
	}

	targetType := foliodomain.FolioType(strings.TrimSpace(req.TargetType))
	if !targetType.Valid() {
		return domain.RoutingRule{}, domain.ErrInvalidTarget
	}

	var orgID *snowflake.ID
	if raw := strings.TrimSpace(req.OrgID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.RoutingRule{}, domain.ErrInvalidID
		}
		orgID = &parsed
	}

	priority := req.Priority
	if priority <= 0 {
		priority = 100
	}

	rule := domain.RoutingRule{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		Category:        category,
		OrgID:           orgID,
		Department:      strings.TrimSpace(req.Department),
		TargetType:      targetType,
		Priority:        priority,
		AutoCreateFolio: req.AutoCreateFolio,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &rule); err != nil {
		return domain.RoutingRule{}, err
	}

	s.log.Info("created routing rule",
		zap.String("rule_id", rule.ID.String()),
		zap.String("category", category),
		zap.String("target_type", string(targetType)),
	)

	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, domain.ErrInvalidTenant
	}
	return s.repo.List(ctx, s.db, tenantID)
}

func (s *Service) DeactivateRule(ctx context.Context, rawID string) error {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ErrInvalidTenant
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return domain.ErrInvalidID
	}

	deactivated, err := s.repo.Deactivate(ctx, s.db, tenantID, id)
	if err != nil {
		return err
	}
	if !deactivated {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (domain.ResolveResponse, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ResolveResponse{}, domain.ErrInvalidTenant
	}

	in, err := s.resolveInput(req)
	if err != nil {
		return domain.ResolveResponse{}, err
	}

	rules, err := s.repo.ListActive(ctx, s.db, tenantID)
	if err != nil {
		return domain.ResolveResponse{}, err
	}

	resp := domain.ResolveResponse{TargetType: foliodomain.FolioTypeRoom}
	if rule := domain.ResolveRule(rules, in); rule != nil {
		resp.TargetType = rule.TargetType
		resp.RuleID = &rule.ID
	}
	return resp, nil
}

func (s *Service) ResolveTarget(ctx context.Context, bookingID snowflake.ID, req domain.ResolveRequest) (domain.ResolvedTarget, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return domain.ResolvedTarget{}, domain.ErrInvalidTenant
	}
	if bookingID == 0 {
		return domain.ResolvedTarget{}, domain.ErrNoTargetFolio
	}

	in, err := s.resolveInput(req)
	if err != nil {
		return domain.ResolvedTarget{}, err
	}

	rules, err := s.repo.ListActive(ctx, s.db, tenantID)
	if err != nil {
		return domain.ResolvedTarget{}, err
	}

	targetType := foliodomain.FolioTypeRoom
	// The implicit room default behaves like an auto-creating rule: the
	// first charge of a stay may open its folio.
	autoCreate := true
	if rule := domain.ResolveRule(rules, in); rule != nil {
		targetType = rule.TargetType
		autoCreate = rule.AutoCreateFolio
	}

	existing, err := s.folioRepo.FindByBookingAndType(ctx, s.db, tenantID, bookingID, targetType)
	if err != nil {
		return domain.ResolvedTarget{}, err
	}
	if existing != nil {
		return domain.ResolvedTarget{Folio: *existing, Type: targetType}, nil
	}
	if !autoCreate {
		return domain.ResolvedTarget{}, domain.ErrNoTargetFolio
	}

	now := time.Now().UTC()
	created := foliodomain.Folio{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		BookingID: bookingID,
		OrgID:     in.OrgID,
		Type:      targetType,
		Status:    foliodomain.FolioStatusOpen,
		Currency:  "USD",
		Metadata:  datatypes.JSONMap{"auto_created": true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := s.folioRepo.Insert(ctx, s.db, &created)
	if err != nil {
		return domain.ResolvedTarget{}, err
	}
	if !inserted {
		// Lost the race to a concurrent posting; the winner's folio serves.
		existing, err = s.folioRepo.FindByBookingAndType(ctx, s.db, tenantID, bookingID, targetType)
		if err != nil {
			return domain.ResolvedTarget{}, err
		}
		if existing == nil {
			return domain.ResolvedTarget{}, domain.ErrNoTargetFolio
		}
		return domain.ResolvedTarget{Folio: *existing, Type: targetType}, nil
	}

	s.log.Info("auto-created routed folio",
		zap.String("folio_id", created.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("type", string(targetType)),
	)

	return domain.ResolvedTarget{Folio: created, Type: targetType}, nil
}

func (s *Service) resolveInput(req domain.ResolveRequest) (domain.ResolveInput, error) {
	in := domain.ResolveInput{
		Category:   strings.TrimSpace(req.Category),
		Department: strings.TrimSpace(req.Department),
	}
	if in.Category == "" {
		return domain.ResolveInput{}, domain.ErrInvalidCategory
	}
	if raw := strings.TrimSpace(req.OrgID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ResolveInput{}, domain.ErrInvalidID
		}
		in.OrgID = &parsed
	}
	return in, nil
}
