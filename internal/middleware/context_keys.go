package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

const principalKey = contextKey("principal")

// Roles carried in the token's role claim.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Role      string
	AccountID string // tenant account a member acts for; empty for admins
}

// IsAdmin reports whether the caller may act on any account.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccessAccount reports whether the caller may read or charge accountID.
func (p Principal) CanAccessAccount(accountID string) bool {
	return p.IsAdmin() || (p.AccountID != "" && p.AccountID == accountID)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipalFromCtx retrieves the authenticated caller from a standard context.
func GetPrincipalFromCtx(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.UserID != ""
}

// GetUserIDFromContext retrieves the authenticated user ID from the Gin request.
// It returns the user ID and a boolean indicating if it was found.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	p, ok := GetPrincipalFromCtx(c.Request.Context())
	if !ok {
		return "", false
	}
	return p.UserID, true
}
