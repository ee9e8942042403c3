package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewSessionClaims(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)
	c := jwtx.NewSessionClaims("user-1", "a@example.com", "Ada", time.Hour, "studio", now)

	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, "studio", c.Issuer)
	require.Equal(t, "a@example.com", c.Email)
	require.Equal(t, "Ada", c.Name)
	require.NotEmpty(t, c.ID)
	require.Equal(t, now.Add(time.Hour), c.ExpiresAtTime())

	other := jwtx.NewSessionClaims("user-1", "a@example.com", "Ada", time.Hour, "studio", now)
	require.NotEqual(t, c.ID, other.ID, "every session gets its own jti")
}

func TestValidateIssuer(t *testing.T) {
	t.Parallel()

	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "studio"}}

	require.NoError(t, c.ValidateIssuer("studio"))
	require.NoError(t, c.ValidateIssuer(""))
	require.ErrorIs(t, c.ValidateIssuer("elsewhere"), jwtx.ErrIssuer)
}

func TestValidateExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	at := func(d time.Duration) *jwt.NumericDate { return jwt.NewNumericDate(now.Add(d)) }

	tests := []struct {
		name   string
		claims jwtx.Claims
		leeway time.Duration
		want   error
	}{
		{"valid", jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: at(time.Minute)}}, 0, nil},
		{"expired", jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: at(-time.Minute)}}, 0, jwtx.ErrExpired},
		{"expired within leeway", jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: at(-10 * time.Second)}}, 30 * time.Second, nil},
		{"not yet valid", jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{NotBefore: at(time.Minute)}}, 0, jwtx.ErrNotYetValid},
		{"no window", jwtx.Claims{}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.claims.ValidateExpiry(tt.leeway)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}
