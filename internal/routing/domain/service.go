package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"gorm.io/gorm"
)

type CreateRuleRequest struct {
	Category        string
	OrgID           string
	Department      string
	TargetType      string
	Priority        int
	AutoCreateFolio bool
}

type ResolveRequest struct {
	Category   string
	OrgID      string
	Department string
}

type ResolveResponse struct {
	TargetType foliodomain.FolioType `json:"target_type"`
	RuleID     *snowflake.ID         `json:"rule_id,omitempty"`
}

// ResolvedTarget is a routed posting destination: the folio that should
// absorb the charge, created on the fly when the winning rule allows it.
type ResolvedTarget struct {
	Folio foliodomain.Folio
	Type  foliodomain.FolioType
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *RoutingRule) error
	ListActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]RoutingRule, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]RoutingRule, error)
	Deactivate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (bool, error)
}

type Service interface {
	CreateRule(context.Context, CreateRuleRequest) (RoutingRule, error)
	ListRules(context.Context) ([]RoutingRule, error)
	DeactivateRule(ctx context.Context, id string) error
	Resolve(context.Context, ResolveRequest) (ResolveResponse, error)
	// ResolveTarget resolves the folio a routed charge lands on for the
	// given booking, creating it when the winning rule auto-creates.
	ResolveTarget(ctx context.Context, bookingID snowflake.ID, req ResolveRequest) (ResolvedTarget, error)
}

var (
	ErrInvalidTenant   = errors.New("invalid_tenant")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidTarget   = errors.New("invalid_target_type")
	ErrInvalidID       = errors.New("invalid_id")
	ErrRuleNotFound    = errors.New("routing_rule_not_found")
	ErrNoTargetFolio   = errors.New("no_target_folio")
)
