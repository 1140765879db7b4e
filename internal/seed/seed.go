// Package seed bootstraps a tenant with the standard routing rule set so a
// fresh install routes charges sensibly before anyone configures rules.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	"gorm.io/gorm"
)

type defaultRule struct {
	category   string
	targetType foliodomain.FolioType
	autoCreate bool
}

var defaultRules = []defaultRule{
	{category: "room", targetType: foliodomain.FolioTypeRoom, autoCreate: false},
	{category: "restaurant", targetType: foliodomain.FolioTypeRestaurant, autoCreate: true},
	{category: "mini_bar", targetType: foliodomain.FolioTypeMiniBar, autoCreate: true},
	{category: "spa", targetType: foliodomain.FolioTypeSpa, autoCreate: true},
	{category: "incidentals", targetType: foliodomain.FolioTypeIncidentals, autoCreate: true},
}

// EnsureDefaultRoutingRules seeds the standard rules for the tenant. A
// tenant that already has any rule is left untouched.
func EnsureDefaultRoutingRules(db *gorm.DB, tenantID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&routingdomain.RoutingRule{}).
			Where("tenant_id = ?", tenantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, rule := range defaultRules {
			record := routingdomain.RoutingRule{
				ID:              node.Generate(),
				TenantID:        tenantID,
				Category:        rule.category,
				TargetType:      rule.targetType,
				Priority:        100,
				AutoCreateFolio: rule.autoCreate,
				Active:          true,
				CreatedAt:       now,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
