package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Claims is the JWT claim set issued by the platform's auth service.
// This subsystem only verifies; issuance lives elsewhere.
type Claims struct {
	jwt.RegisteredClaims

	Role         string       `json:"role"`
	HomeTenantID string       `json:"home_tenant_id"`
	Permissions  []string     `json:"permissions,omitempty"`
	Memberships  []Membership `json:"memberships,omitempty"`
}

// JWTVerifier verifies HMAC-signed session tokens and adapts their
// claims into session descriptors.
type JWTVerifier struct {
	key []byte
}

// NewJWTVerifier creates a verifier over the shared signing key.
func NewJWTVerifier(key []byte) (*JWTVerifier, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &JWTVerifier{key: key}, nil
}

// Verify parses and validates the token, rejecting non-HMAC algorithms
// to prevent algorithm-confusion attacks.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*SessionDescriptor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &SessionDescriptor{
		UserID:       claims.Subject,
		Role:         claims.Role,
		HomeTenantID: claims.HomeTenantID,
		Permissions:  claims.Permissions,
		Memberships:  claims.Memberships,
	}, nil
}
