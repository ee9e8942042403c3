package studio_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLogin verifies login is limited to 5 attempts a minute per
// address and email.
func TestRateLimitLogin(t *testing.T) {
	baseURL := setupStudioContainerWithDefaultRateLimits(t)
	client := visionsdk.NewClient(baseURL)

	for i := range 5 {
		_, err := client.Login(t.Context(), "nobody@example.com", "wrong password")
		require.ErrorIs(t, err, visionsdk.ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := client.Login(t.Context(), "nobody@example.com", "wrong password")
	var apiErr *visionsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	require.Equal(t, visionsdk.CodeRateLimited, apiErr.Code)
}
