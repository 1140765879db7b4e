package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id int64, category string, target foliodomain.FolioType, priority int) RoutingRule {
	return RoutingRule{
		ID:         snowflake.ID(id),
		Category:   category,
		TargetType: target,
		Priority:   priority,
		Active:     true,
	}
}

func TestResolveRulePicksLowestPriority(t *testing.T) {
	rules := []RoutingRule{
		rule(1, "restaurant", foliodomain.FolioTypeIncidentals, 200),
		rule(2, "restaurant", foliodomain.FolioTypeRestaurant, 10),
		rule(3, "spa", foliodomain.FolioTypeSpa, 1),
	}

	winner := ResolveRule(rules, ResolveInput{Category: "restaurant"})
	require.NotNil(t, winner)
	assert.Equal(t, snowflake.ID(2), winner.ID)
}

func TestResolveRuleTieBreaksOnOldestRule(t *testing.T) {
	rules := []RoutingRule{
		rule(9, "mini_bar", foliodomain.FolioTypeIncidentals, 100),
		rule(4, "mini_bar", foliodomain.FolioTypeMiniBar, 100),
	}

	winner := ResolveRule(rules, ResolveInput{Category: "mini_bar"})
	require.NotNil(t, winner)
	assert.Equal(t, snowflake.ID(4), winner.ID)
}

func TestResolveRuleScopeMustMatchWhenSet(t *testing.T) {
	org := snowflake.ID(77)
	scoped := rule(1, "restaurant", foliodomain.FolioTypeCorporate, 10)
	scoped.OrgID = &org
	scoped.Department = "banquets"
	rules := []RoutingRule{
		scoped,
		rule(2, "restaurant", foliodomain.FolioTypeRestaurant, 100),
	}

	// Missing scope falls through to the unscoped rule.
	winner := ResolveRule(rules, ResolveInput{Category: "restaurant"})
	require.NotNil(t, winner)
	assert.Equal(t, snowflake.ID(2), winner.ID)

	// Full scope match prefers the tighter, lower-priority rule.
	winner = ResolveRule(rules, ResolveInput{Category: "restaurant", OrgID: &org, Department: "banquets"})
	require.NotNil(t, winner)
	assert.Equal(t, snowflake.ID(1), winner.ID)

	// Wrong org never matches the scoped rule.
	other := snowflake.ID(88)
	winner = ResolveRule(rules, ResolveInput{Category: "restaurant", OrgID: &other, Department: "banquets"})
	require.NotNil(t, winner)
	assert.Equal(t, snowflake.ID(2), winner.ID)
}

func TestResolveRuleIgnoresInactiveAndForeignCategories(t *testing.T) {
	inactive := rule(1, "spa", foliodomain.FolioTypeSpa, 1)
	inactive.Active = false
	rules := []RoutingRule{
		inactive,
		rule(2, "restaurant", foliodomain.FolioTypeRestaurant, 1),
	}

	assert.Nil(t, ResolveRule(rules, ResolveInput{Category: "spa"}))
}

func TestResolveDefaultsToRoom(t *testing.T) {
	assert.Equal(t, foliodomain.FolioTypeRoom, Resolve(nil, ResolveInput{Category: "laundry"}))
	assert.Equal(t, foliodomain.FolioTypeSpa, Resolve([]RoutingRule{rule(1, "spa", foliodomain.FolioTypeSpa, 1)}, ResolveInput{Category: "spa"}))
}
