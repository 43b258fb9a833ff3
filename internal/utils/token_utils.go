package utils

import (
	"fmt"
	"time"

	"github.com/SscSPs/credit_ledger_app/internal/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateJWT signs an HS256 token for userID carrying the role and tenant account claims
// that AuthMiddleware expects. Members must be bound to an account.
func GenerateJWT(userID, role, accountID, secret string, expiryDuration time.Duration, issuer string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID cannot be empty")
	}
	switch role {
	case middleware.RoleAdmin:
	case middleware.RoleMember:
		if accountID == "" {
			return "", fmt.Errorf("member tokens must name an account")
		}
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := time.Now()
	claims := middleware.AuthClaims{
		Role:      role,
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiryDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
