package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is a verified caller.
type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Admin     bool      `json:"admin"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// NormalizeClaims is the only place that decides who a token belongs to and
// whether it carries admin rights. Accepted admin markers: admin or isAdmin
// set to true (bool or "true"), role "admin", or "admin" in roles or
// realm_access.roles.
func NormalizeClaims(claims map[string]any) (Identity, error) {
	var id Identity
	for _, key := range []string{"sub", "user_id", "uid"} {
		if s, ok := claims[key].(string); ok && s != "" {
			id.UserID = s
			break
		}
	}
	if id.UserID == "" {
		return Identity{}, errors.New("token has no subject")
	}

	id.Email, _ = claims["email"].(string)
	id.Admin = truthy(claims["admin"]) ||
		truthy(claims["isAdmin"]) ||
		strings.EqualFold(stringClaim(claims["role"]), "admin") ||
		hasAdminRole(claims["roles"])
	if realm, ok := claims["realm_access"].(map[string]any); ok && hasAdminRole(realm["roles"]) {
		id.Admin = true
	}
	return id, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	}
	return false
}

func stringClaim(v any) string {
	s, _ := v.(string)
	return s
}

func hasAdminRole(v any) bool {
	roles, ok := v.([]any)
	if !ok {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(stringClaim(r), "admin") {
			return true
		}
	}
	return false
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the identity set by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserID is a shortcut for handlers that only need the caller id.
func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}
