// Package domain contains charge-routing rules and the resolver over them.
package domain

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
)

// RoutingRule maps a charge category (plus optional organization and
// department scope) to the folio type that should absorb it. Lower priority
// values win.
type RoutingRule struct {
	ID              snowflake.ID         `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID         `gorm:"not null;index" json:"tenant_id"`
	Category        string               `gorm:"type:text;not null;index" json:"category"`
	OrgID           *snowflake.ID        `gorm:"index" json:"org_id,omitempty"`
	Department      string               `gorm:"type:text" json:"department,omitempty"`
	TargetType      foliodomain.FolioType `gorm:"type:text;not null" json:"target_type"`
	Priority        int                  `gorm:"not null;default:100" json:"priority"`
	AutoCreateFolio bool                 `gorm:"not null;default:false" json:"auto_create_folio"`
	Active          bool                 `gorm:"not null;default:true;index" json:"active"`
	CreatedAt       time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (RoutingRule) TableName() string { return "routing_rules" }

// ResolveInput is one charge's routing context.
type ResolveInput struct {
	Category   string
	OrgID      *snowflake.ID
	Department string
}

// ResolveRule selects the winning rule for the input, or nil when nothing
// matches. Pure over the supplied rule set: a rule matches when its category
// equals the input's and its org/department scope, where set, equals the
// input's; ties break on lowest priority then oldest rule.
func ResolveRule(rules []RoutingRule, in ResolveInput) *RoutingRule {
	matches := make([]RoutingRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active || rule.Category != in.Category {
			continue
		}
		if rule.OrgID != nil && (in.OrgID == nil || *rule.OrgID != *in.OrgID) {
			continue
		}
		if rule.Department != "" && rule.Department != in.Department {
			continue
		}
		matches = append(matches, rule)
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		return matches[i].ID < matches[j].ID
	})
	winner := matches[0]
	return &winner
}

// Resolve returns the target folio type for the input, defaulting to room
// when no rule matches.
func Resolve(rules []RoutingRule, in ResolveInput) foliodomain.FolioType {
	if rule := ResolveRule(rules, in); rule != nil {
		return rule.TargetType
	}
	return foliodomain.FolioTypeRoom
}
