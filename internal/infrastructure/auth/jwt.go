// Package auth verifies bearer tokens issued by the portal's identity
// provider. Tokens are never issued here.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims is the subset of the portal's access token this service reads
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// UserUUID parses the user ID claim
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// Verifier checks signature, expiry, issuer and revocation of access tokens
type Verifier struct {
	secret     []byte
	issuer     string
	revocation RevocationList
}

// NewVerifier creates a Verifier. revocation may be nil.
func NewVerifier(cfg config.JWTConfig, revocation RevocationList) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	return &Verifier{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		revocation: revocation,
	}, nil
}

// Verify parses tokenString and returns its claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, ErrMissingUserID
	}

	if v.revocation != nil {
		revoked, err := v.isRevoked(ctx, claims)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

func (v *Verifier) isRevoked(ctx context.Context, claims *Claims) (bool, error) {
	if claims.ID != "" {
		revoked, err := v.revocation.IsRevoked(ctx, claims.ID)
		if err != nil || revoked {
			return revoked, err
		}
	}
	if claims.IssuedAt == nil {
		return false, nil
	}
	return v.revocation.IsUserInvalidated(ctx, claims.UserID, claims.IssuedAt.Time)
}
