package auth

import (
	"context"

	"github.com/huzaifasad/backendforfamily/internal/model"
)

type contextKey struct{}

// Principal is the authenticated caller. FamilyID is the owning parent's user
// ID: the caller's own ID for parents and admins, the parent's ID for children.
type Principal struct {
	ID       int64
	Role     model.Role
	FamilyID int64
	TokenID  string
}

func (p Principal) IsParent() bool { return p.Role == model.RoleParent }
func (p Principal) IsChild() bool  { return p.Role == model.RoleChild }
func (p Principal) IsAdmin() bool  { return p.Role == model.RoleAdmin }

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

func UserID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.ID
}

func FamilyID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.FamilyID
}

func IsAdmin(ctx context.Context) bool {
	p, ok := FromContext(ctx)
	return ok && p.IsAdmin()
}
