package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stayloop/folio/internal/routing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.RoutingRule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO routing_rules (id, tenant_id, category, org_id, department, target_type, priority, auto_create_folio, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.TenantID,
		rule.Category,
		rule.OrgID,
		rule.Department,
		rule.TargetType,
		rule.Priority,
		rule.AutoCreateFolio,
		rule.Active,
		rule.CreatedAt,
	).Error
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.RoutingRule, error) {
	var rules []domain.RoutingRule
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("priority asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.RoutingRule, error) {
	var rules []domain.RoutingRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE routing_rules SET active = ? WHERE tenant_id = ? AND id = ? AND active = ?`,
		false, tenantID, id, true,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
