package shared

import (
	"context"
	"time"
)

type sessionUserContextKey struct{}

// SessionUser is the authenticated requester bound to a request after authorization.
type SessionUser struct {
	PrincipalID int64     `json:"principalId"`
	Subject     string    `json:"subject"`
	Category    string    `json:"category"`
	RoleID      *int64    `json:"roleId,omitempty"`
	TokenID     string    `json:"tokenId,omitempty"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ContextWithSessionUser stores the session user in context.
func ContextWithSessionUser(ctx context.Context, user *SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserContextKey{}, user)
}

// SessionUserFromContext extracts the session user from context.
// It returns nil for anonymous requests.
func SessionUserFromContext(ctx context.Context) *SessionUser {
	user, _ := ctx.Value(sessionUserContextKey{}).(*SessionUser)
	return user
}
