package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// ExtractTokenFromRequest extracts a bearer token from the Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// OIDCVerifier checks ID tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys. An empty clientID skips the
// audience check.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider for %s: %w", issuer, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(oidcConfig(clientID))}, nil
}

// NewOIDCVerifierWithKeySet skips discovery and trusts keySet directly.
func NewOIDCVerifierWithKeySet(issuer string, keySet oidc.KeySet, clientID string) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuer, keySet, oidcConfig(clientID))}
}

func oidcConfig(clientID string) *oidc.Config {
	return &oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: parse claims: %v", ErrInvalidToken, err)
	}

	id, err := NormalizeClaims(claims)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id.ExpiresAt = idToken.Expiry
	return id, nil
}

// HMACVerifier accepts HS256 tokens signed with a shared secret. Meant for
// local development and tests.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is empty")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := NormalizeClaims(claims)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}

// IssueHMACToken signs a development token for userID.
func IssueHMACToken(secret, userID string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"admin": admin,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
