// Package actor carries the authenticated caller identity through context.
//
// The host's routing layer (or the api middleware) authenticates a request
// and stores the resulting Actor in the request context; services read it
// back to enforce ownership and elevated-permission checks.
package actor

import (
	"context"
	"errors"
	"slices"
)

// ErrForbidden is returned when an actor lacks ownership of a resource and
// does not hold an elevated permission.
var ErrForbidden = errors.New("gatehouse: forbidden")

// Admin is the elevated permission that bypasses ownership checks.
const Admin = "admin"

// Actor is an authenticated caller: the owner identity a credential resolved
// to, plus the permission set granted to it.
type Actor struct {
	OwnerID     string   `json:"owner_id"`
	KeyID       string   `json:"key_id,omitempty"`
	Permissions []string `json:"permissions"`
}

// Has reports whether the actor holds the given permission.
func (a Actor) Has(permission string) bool {
	return slices.Contains(a.Permissions, permission)
}

// IsAdmin reports whether the actor holds the elevated admin permission.
func (a Actor) IsAdmin() bool {
	return a.Has(Admin)
}

// CanManage reports whether the actor may mutate a resource owned by ownerID:
// either the actor owns it or holds the admin permission.
func (a Actor) CanManage(ownerID string) bool {
	return a.OwnerID == ownerID || a.IsAdmin()
}

// Authorize returns ErrForbidden unless the actor may manage resources owned
// by ownerID.
func (a Actor) Authorize(ownerID string) error {
	if !a.CanManage(ownerID) {
		return ErrForbidden
	}
	return nil
}

type ctxKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext extracts the actor from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
