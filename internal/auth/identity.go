// Package auth carries the caller identity through core operations.
//
// Tokens are issued elsewhere; this package only verifies HS256 bearer
// tokens and exposes the resulting Identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a request carries no valid identity.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the authenticated caller.
type Identity struct {
	UserID    int64
	ProfileID int64
	Role      string
}

// Claims is the JWT payload understood by this service.
type Claims struct {
	ProfileID int64  `json:"profile_id,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Verifier validates bearer tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256 tokens.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses token and returns the identity it names. A token without a
// profile_id claim uses the user id as profile id.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: invalid subject %q", ErrUnauthorized, claims.Subject)
	}

	id := Identity{UserID: userID, ProfileID: claims.ProfileID, Role: claims.Role}
	if id.ProfileID == 0 {
		id.ProfileID = userID
	}
	return id, nil
}

// Sign issues a token for id. Used by tooling and tests; the production
// issuer is the external identity service.
func (v *Verifier) Sign(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ProfileID: id.ProfileID,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
