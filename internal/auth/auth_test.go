package auth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-portal/internal/auth"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

const secret = "test-secret"

func signHS256(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func TestNormalizeClaims(t *testing.T) {
	tests := []struct {
		name      string
		claims    map[string]any
		wantUser  string
		wantAdmin bool
		wantErr   bool
	}{
		{"plain vendor", map[string]any{"sub": "m1"}, "m1", false, false},
		{"admin bool", map[string]any{"sub": "a1", "admin": true}, "a1", true, false},
		{"isAdmin string", map[string]any{"sub": "a1", "isAdmin": "true"}, "a1", true, false},
		{"role claim", map[string]any{"sub": "a1", "role": "Admin"}, "a1", true, false},
		{"roles array", map[string]any{"sub": "a1", "roles": []any{"vendor", "admin"}}, "a1", true, false},
		{"keycloak realm roles", map[string]any{"sub": "a1", "realm_access": map[string]any{"roles": []any{"admin"}}}, "a1", true, false},
		{"admin false", map[string]any{"sub": "m1", "admin": false, "role": "vendor"}, "m1", false, false},
		{"firebase user_id", map[string]any{"user_id": "fb1"}, "fb1", false, false},
		{"no subject", map[string]any{"admin": true}, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := auth.NormalizeClaims(tt.claims)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, id.UserID)
			assert.Equal(t, tt.wantAdmin, id.Admin)
		})
	}
}

func TestHMACVerifier(t *testing.T) {
	v, err := auth.NewHMACVerifier(secret)
	require.NoError(t, err)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	t.Run("valid token", func(t *testing.T) {
		tok := signHS256(t, secret, jwt.MapClaims{"sub": "m1", "exp": exp.Unix()})
		id, err := v.Verify(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "m1", id.UserID)
		assert.False(t, id.Admin)
		assert.Equal(t, exp.Unix(), id.ExpiresAt.Unix())
	})

	t.Run("issued dev token", func(t *testing.T) {
		tok, err := auth.IssueHMACToken(secret, "a1", true, time.Hour)
		require.NoError(t, err)
		id, err := v.Verify(ctx, tok)
		require.NoError(t, err)
		assert.True(t, id.Admin)
	})

	t.Run("rejections", func(t *testing.T) {
		cases := map[string]string{
			"wrong secret": signHS256(t, "other", jwt.MapClaims{"sub": "m1", "exp": exp.Unix()}),
			"expired":      signHS256(t, secret, jwt.MapClaims{"sub": "m1", "exp": time.Now().Add(-time.Minute).Unix()}),
			"no expiry":    signHS256(t, secret, jwt.MapClaims{"sub": "m1"}),
			"no subject":   signHS256(t, secret, jwt.MapClaims{"exp": exp.Unix()}),
			"garbage":      "not-a-token",
		}
		for name, tok := range cases {
			_, err := v.Verify(ctx, tok)
			assert.ErrorIs(t, err, auth.ErrInvalidToken, name)
		}
	})

	_, err = auth.NewHMACVerifier("")
	assert.Error(t, err)
}

func TestOIDCVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const issuer = "https://securetoken.example.com/seller-portal"

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	v := auth.NewOIDCVerifierWithKeySet(issuer, keySet, "seller-portal")

	sign := func(claims jwt.MapClaims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return tok
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":     issuer,
			"aud":     "seller-portal",
			"sub":     "a1",
			"isAdmin": true,
			"iat":     time.Now().Unix(),
			"exp":     time.Now().Add(time.Hour).Unix(),
		}
	}

	id, err := v.Verify(context.Background(), sign(base()))
	require.NoError(t, err)
	assert.Equal(t, "a1", id.UserID)
	assert.True(t, id.Admin)
	assert.False(t, id.ExpiresAt.IsZero())

	wrongAudience := base()
	wrongAudience["aud"] = "someone-else"
	_, err = v.Verify(context.Background(), sign(wrongAudience))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	wrongIssuer := base()
	wrongIssuer["iss"] = "https://evil.example.com"
	_, err = v.Verify(context.Background(), sign(wrongIssuer))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

type staticVerifier struct {
	id  auth.Identity
	err error
}

func (s staticVerifier) Verify(ctx context.Context, rawToken string) (auth.Identity, error) {
	return s.id, s.err
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMiddleware(t *testing.T) {
	log := logger.Discard()
	var seen auth.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header", func(t *testing.T) {
		h := auth.Middleware(staticVerifier{}, log)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeError(t, rec)
		assert.False(t, body.OK)
		assert.Equal(t, "unauthorized", body.Error)
	})

	t.Run("malformed header", func(t *testing.T) {
		h := auth.Middleware(staticVerifier{}, log)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("verifier rejects", func(t *testing.T) {
		h := auth.Middleware(staticVerifier{err: errors.New("bad")}, log)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("identity reaches handler", func(t *testing.T) {
		h := auth.Middleware(staticVerifier{id: auth.Identity{UserID: "m1"}}, log)(next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "m1", seen.UserID)
	})

	t.Run("admin gate", func(t *testing.T) {
		for _, admin := range []bool{false, true} {
			h := auth.Middleware(staticVerifier{id: auth.Identity{UserID: "u", Admin: admin}}, log)(auth.RequireAdmin(log)(next))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if admin {
				assert.Equal(t, http.StatusNoContent, rec.Code)
			} else {
				assert.Equal(t, http.StatusForbidden, rec.Code)
			}
		}
	})
}
