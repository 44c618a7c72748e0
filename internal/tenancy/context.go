// Package tenancy carries the resolved (tenant, user, role) triple through
// request contexts. Core packages never read ambient session state; they
// receive this context explicitly.
package tenancy

import "context"

// Role is the acting user's role within a tenant.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleDoctor      Role = "DOCTOR"
	RoleCoordinator Role = "COORDINATOR"
)

// Actor identifies who is performing an operation and under which clinic.
type Actor struct {
	TenantID string
	UserID   string
	Role     Role
}

// Valid reports whether the actor carries at least a tenant id.
func (a Actor) Valid() bool {
	return a.TenantID != ""
}

type ctxKey string

const actorKey ctxKey = "clinic.actor"

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	return actor, ok && actor.Valid()
}

// TenantIDFromContext extracts just the tenant id if present.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	return actor.TenantID, ok
}
