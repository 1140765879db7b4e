// Package tenantctx carries the resolved tenant and actor identity through
// request contexts. The engine trusts the caller to have authenticated both.
package tenantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// TenantKey is the request context key for the active tenant ID.
type TenantKey struct{}

// ActorKey is the request context key for the acting staff member.
type ActorKey struct{}

// WithTenantID stores the tenant ID in the context.
func WithTenantID(ctx context.Context, tenantID snowflake.ID) context.Context {
	return context.WithValue(ctx, TenantKey{}, tenantID)
}

// WithActorID stores the actor ID in the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// TenantID returns the tenant ID from context, if set.
func TenantID(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	switch typed := ctx.Value(TenantKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// ActorID returns the actor ID from context, or empty.
func ActorID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if actor, ok := ctx.Value(ActorKey{}).(string); ok {
		return strings.TrimSpace(actor)
	}
	return ""
}
