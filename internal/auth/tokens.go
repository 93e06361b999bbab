package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the custom claim. A refresh token can never be
// presented where an access token is expected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken covers malformed, mis-signed and expired tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongTokenType is returned when a token verifies but carries the
	// wrong type claim for the operation.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims are the JWT claims issued for user sessions.
type Claims struct {
	jwt.RegisteredClaims

	TokenType string `json:"type"`
}

// TokenIssuer mints and verifies HMAC-signed session tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates a token issuer signing with HMAC-SHA256.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("JWT secret not provided")
	}

	return &TokenIssuer{
		secret:     []byte(secret),
		issuer:     "contractflow",
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// IssueAccess creates a signed access token for the given user.
func (ti *TokenIssuer) IssueAccess(userID uuid.UUID) (string, error) {
	return ti.issue(userID, TokenTypeAccess, ti.accessTTL)
}

// IssueRefresh creates a signed refresh token for the given user.
func (ti *TokenIssuer) IssueRefresh(userID uuid.UUID) (string, error) {
	return ti.issue(userID, TokenTypeRefresh, ti.refreshTTL)
}

func (ti *TokenIssuer) issue(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    ti.issuer,
		},
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Verify parses and validates a token, checking signature, expiry and the
// type claim. Returns the subject user ID and the parsed claims.
func (ti *TokenIssuer) Verify(tokenStr, wantType string) (uuid.UUID, *Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return ti.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return uuid.Nil, nil, ErrInvalidToken
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return uuid.Nil, nil, ErrInvalidToken
	}

	if claims.TokenType != wantType {
		return uuid.Nil, nil, ErrWrongTokenType
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrInvalidToken
	}

	return userID, claims, nil
}
