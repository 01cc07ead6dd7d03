package auth

import (
	"context"

	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
)

// Principal is an authenticated caller with its role and scope.
type Principal struct {
	ID      string    `json:"id"`
	Role    user.Role `json:"role"`
	VenueID string    `json:"venue_id,omitempty"`
	RoomID  string    `json:"room_id,omitempty"`
}

// System is the principal batch tools act as.
var System = Principal{ID: "system", Role: user.RoleAdmin}

// Service defines the interface for authentication-related business logic.
type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
	Verify(ctx context.Context, token string) (*Principal, error)
}

type ctxKey struct{}

// WithPrincipal stores p in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by the middleware, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}
