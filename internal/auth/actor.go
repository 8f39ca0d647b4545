package auth

import "context"

// Role is the coarse permission level carried in access tokens.
type Role string

const (
	RoleUser    Role = "user"
	RoleAuditor Role = "auditor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAuditor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of a request.
type Actor struct {
	ID          string
	DisplayName string
	Role        Role
}

// IsModerator reports whether the actor may review and remove any entry.
func (a Actor) IsModerator() bool {
	return a.Role == RoleAuditor || a.Role == RoleAdmin
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored in ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}
