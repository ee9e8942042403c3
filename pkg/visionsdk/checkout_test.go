package visionsdk_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) visionsdk.RetryPolicy {
	return visionsdk.RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      1.5,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsed:      5 * time.Second,
		MaxAttempts:     attempts,
	}
}

func TestCheckCheckoutBeforePayment(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)

	c := s.CheckCheckout(t.Context(), "cs_1")
	require.Equal(t, visionsdk.ConfirmUnconfirmed, c.State)
	require.ErrorIs(t, c.Err, visionsdk.ErrPaymentUnconfirmed)
	require.Equal(t, visionsdk.CheckoutOpen, c.Status)
	require.Equal(t, 20, s.CachedCredits())
	require.Zero(t, b.hitCount("GET /me"), "unconfirmed payments do not refresh")
}

func TestCheckCheckoutPaidRefreshes(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)
	b.with(func() {
		b.statuses = []string{visionsdk.CheckoutPaid}
		b.payCreds = 60
	})

	c := s.CheckCheckout(t.Context(), "cs_1")
	require.Equal(t, visionsdk.ConfirmConfirmed, c.State)
	require.NoError(t, c.Err)
	require.Equal(t, 80, s.CachedCredits())
}

func TestConfirmCheckoutGivesUpUnconfirmed(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)

	var retries int
	policy := fastPolicy(3)
	policy.OnRetry = func(c visionsdk.Confirmation, wait time.Duration) {
		retries++
		require.Equal(t, visionsdk.ConfirmUnconfirmed, c.State)
	}

	c := s.ConfirmCheckout(t.Context(), "cs_1", policy)
	require.Equal(t, visionsdk.ConfirmUnconfirmed, c.State)
	require.ErrorIs(t, c.Err, visionsdk.ErrPaymentUnconfirmed)
	require.Equal(t, 3, c.Attempts)
	require.Equal(t, 2, retries)
	require.Equal(t, 3, b.hitCount("GET /payments/session/cs_1"))
	require.Equal(t, 20, s.CachedCredits(), "nothing credited")
	require.False(t, s.Pending(visionsdk.ActionPurchase))
}

func TestConfirmCheckoutAfterRetries(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)
	b.with(func() {
		b.statuses = []string{visionsdk.CheckoutOpen, visionsdk.CheckoutUnpaid, visionsdk.CheckoutPaid}
		b.payCreds = 100
	})

	c := s.ConfirmCheckout(t.Context(), "cs_1", fastPolicy(6))
	require.Equal(t, visionsdk.ConfirmConfirmed, c.State)
	require.NoError(t, c.Err)
	require.Equal(t, 3, c.Attempts)
	require.Equal(t, testEmail, c.CustomerEmail)
	require.Equal(t, 120, s.CachedCredits())
}

func TestConfirmCheckoutExpiredIsTerminal(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)
	b.with(func() { b.statuses = []string{visionsdk.CheckoutExpired} })

	c := s.ConfirmCheckout(t.Context(), "cs_1", fastPolicy(6))
	require.Equal(t, visionsdk.ConfirmError, c.State)
	require.Equal(t, 1, c.Attempts)
	require.Equal(t, 20, s.CachedCredits())
}

func TestConfirmCheckoutUnauthorized(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)
	b.setToken("rotated")

	c := s.ConfirmCheckout(t.Context(), "cs_1", fastPolicy(6))
	require.Equal(t, visionsdk.ConfirmError, c.State)
	require.ErrorIs(t, c.Err, visionsdk.ErrUnauthenticated)
	require.Equal(t, 1, c.Attempts)
	require.False(t, s.Authenticated())
}

func TestConfirmCheckoutCanBeCanceled(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)
	s := loggedIn(t, b)

	policy := visionsdk.RetryPolicy{InitialInterval: time.Hour, MaxInterval: time.Hour, MaxElapsed: 2 * time.Hour, MaxAttempts: 3}
	waiting := make(chan struct{})
	policy.OnRetry = func(visionsdk.Confirmation, time.Duration) { close(waiting) }

	done := make(chan visionsdk.Confirmation, 1)
	go func() { done <- s.ConfirmCheckout(context.Background(), "cs_1", policy) }()

	<-waiting
	require.True(t, s.Pending(visionsdk.ActionPurchase))
	require.Equal(t, visionsdk.ConfirmError, s.ConfirmCheckout(t.Context(), "cs_1", fastPolicy(1)).State, "one confirmation at a time")

	require.True(t, s.Cancel(visionsdk.ActionPurchase))
	c := <-done
	require.Equal(t, visionsdk.ConfirmError, c.State)
	require.ErrorIs(t, c.Err, visionsdk.ErrCanceled)
	require.Equal(t, 20, s.CachedCredits())
}

func TestStartCheckout(t *testing.T) {
	t.Parallel()

	b := newFakeBackend(t, 20)

	_, err := b.store().StartCheckout(t.Context(), "starter", "", "")
	require.ErrorIs(t, err, visionsdk.ErrUnauthenticated)

	s := loggedIn(t, b)
	out, err := s.StartCheckout(t.Context(), "starter", "http://x/success", "http://x/cancel")
	require.NoError(t, err)
	require.Equal(t, "cs_1", out.SessionID)
	require.Equal(t, 20, s.CachedCredits(), "checkout applies nothing up front")
}

func TestAPIErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *visionsdk.APIError
		want error
	}{
		{"bad login", visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeInvalidCredentials, ""), visionsdk.ErrInvalidCredentials},
		{"expired session", visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeUnauthenticated, ""), visionsdk.ErrUnauthenticated},
		{"402 by code", visionsdk.NewAPIError(http.StatusPaymentRequired, visionsdk.CodeInsufficientCredits, ""), visionsdk.ErrInsufficientCredits},
		{"402 by status", visionsdk.NewAPIError(http.StatusPaymentRequired, "http_402", ""), visionsdk.ErrInsufficientCredits},
		{"unconfirmed", visionsdk.NewAPIError(http.StatusConflict, visionsdk.CodePaymentUnconfirmed, ""), visionsdk.ErrPaymentUnconfirmed},
		{"5xx", visionsdk.NewAPIError(http.StatusBadGateway, "upstream", ""), visionsdk.ErrServer},
		{"server_error in a 200 body", visionsdk.NewAPIError(http.StatusOK, visionsdk.CodeServerError, ""), visionsdk.ErrServer},
		{"unauthenticated in a 200 body", visionsdk.NewAPIError(http.StatusOK, visionsdk.CodeUnauthenticated, ""), visionsdk.ErrUnauthenticated},
		{"plain 400", visionsdk.NewAPIError(http.StatusBadRequest, visionsdk.CodeMissingPrompt, ""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == nil {
				require.Nil(t, tt.err.Unwrap())
				return
			}
			require.ErrorIs(t, tt.err, tt.want)
		})
	}
}
