package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]jwtx.Claims

func (s stubVerifier) Verify(tok string) (jwtx.Claims, error) {
	c, ok := s[tok]
	if !ok {
		return jwtx.Claims{}, errors.New("bad token")
	}
	return c, nil
}

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

func TestAuthnMiddleware(t *testing.T) {
	t.Parallel()

	claims := jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", ID: "jti-1"}}
	verifier := stubVerifier{"good": claims}

	var seen string
	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = httpx.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	_ = seen

	tests := []struct {
		name   string
		header string
		rev    httpx.RevocationChecker
		want   int
	}{
		{"valid", "Bearer good", nil, http.StatusNoContent},
		{"lowercase scheme", "bearer good", nil, http.StatusNoContent},
		{"missing header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic good", nil, http.StatusUnauthorized},
		{"unknown token", "Bearer nope", nil, http.StatusUnauthorized},
		{"revoked", "Bearer good", stubRevocations{revoked: map[string]bool{"jti-1": true}}, http.StatusUnauthorized},
		{"not revoked", "Bearer good", stubRevocations{}, http.StatusNoContent},
		{"revocation store down", "Bearer good", stubRevocations{err: errors.New("db gone")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := httpx.AuthnMiddleware(verifier, tt.rev)(protected)

			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want != http.StatusUnauthorized {
				return
			}

			require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			var body httpx.ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, "unauthenticated", body.Error)
		})
	}
}

func TestAuthnMiddlewareInjectsClaims(t *testing.T) {
	t.Parallel()

	claims := jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7", ID: "jti-7"}, Email: "x@y.z"}
	h := httpx.AuthnMiddleware(stubVerifier{"tok": claims}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "x@y.z", got.Email)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
