package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/router-for-me/CoinLedger/internal/apperr"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// CallerClaims identify the account a request acts as.
type CallerClaims struct {
	AccountID   string   `json:"account_id"`
	IsAdmin     bool     `json:"is_admin,omitempty"`
	Permissions []string `json:"permissions,omitempty"` // Admin route keys; empty grants every admin route.
	jwt.RegisteredClaims
}

// GenerateToken signs a caller JWT with the configured expiry.
func GenerateToken(secret, accountID string, isAdmin bool, permissions []string, expiry time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := CallerClaims{
		AccountID:   accountID,
		IsAdmin:     isAdmin,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a caller JWT and returns its claims.
func ParseToken(secret string, tokenString string) (*CallerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CallerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyCaller resolves an Authorization header value to caller claims.
// Every failure is reported as unauthenticated.
func VerifyCaller(secret, authHeader string) (*CallerClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, apperr.ErrUnauthenticated.WithMessage("token verification is not configured")
	}
	if authHeader == "" {
		return nil, apperr.ErrUnauthenticated.WithMessage("missing authorization header")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return nil, apperr.ErrUnauthenticated.WithMessage("invalid authorization format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrUnauthenticated.WithMessage("empty token")
	}

	claims, errParse := ParseToken(secret, token)
	if errParse != nil {
		return nil, apperr.ErrUnauthenticated.WithMessage("%s", errParse.Error()).Wrap(errParse)
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, apperr.ErrUnauthenticated.WithMessage("token carries no account")
	}
	return claims, nil
}
