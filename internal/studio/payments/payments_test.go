package payments_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := payments.DefaultCatalog()

	tests := []struct {
		sku     string
		credits int
		cents   int64
		mode    string
	}{
		{"starter", 60, 900, domain.ModePayment},
		{"standard", 100, 1500, domain.ModePayment},
		{"studio", 400, 4900, domain.ModePayment},
		{"adfree", 0, 499, domain.ModeSubscription},
	}
	for _, tc := range tests {
		t.Run(tc.sku, func(t *testing.T) {
			p, ok := c.Lookup(tc.sku)
			require.True(t, ok)
			require.Equal(t, tc.credits, p.Credits)
			require.Equal(t, tc.cents, p.AmountCents)
			require.Equal(t, tc.mode, p.Mode)
			require.Equal(t, "usd", p.Currency)
		})
	}

	_, ok := c.Lookup("platinum")
	require.False(t, ok)

	all := c.All()
	require.Len(t, all, 4)
	require.Equal(t, "starter", all[0].SKU)

	all[0].SKU = "mutated"
	require.Equal(t, "starter", c.All()[0].SKU)
}

func TestLocalProvider(t *testing.T) {
	t.Parallel()

	p := payments.NewLocalProvider("http://localhost:8080/", 0)
	s, err := p.CreateSession(context.Background(), payments.SessionParams{SKU: "starter"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(s.ID, "cs_"))
	require.Equal(t, "http://localhost:8080/payments/simulate/"+s.ID, s.URL)
	require.WithinDuration(t, time.Now().Add(payments.DefaultSessionTTL), s.ExpiresAt, time.Minute)

	other, err := p.CreateSession(context.Background(), payments.SessionParams{SKU: "starter"})
	require.NoError(t, err)
	require.NotEqual(t, s.ID, other.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.CreateSession(ctx, payments.SessionParams{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWebhookSignature(t *testing.T) {
	t.Parallel()

	const secret = "whsec_test"
	now := time.Now()
	event := payments.Event{
		ID:   "evt_1",
		Type: payments.EventCheckoutCompleted,
		Data: payments.EventData{SessionID: "cs_1", CustomerEmail: "ada@example.com"},
	}

	payload, header, err := payments.SignEvent(secret, event, now)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		got, err := payments.ParseEvent(secret, payload, header, payments.DefaultSignatureTolerance, now)
		require.NoError(t, err)
		require.Equal(t, event, got)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := payments.ParseEvent("other", payload, header, 0, now)
		require.ErrorIs(t, err, payments.ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := []byte(strings.Replace(string(payload), "cs_1", "cs_2", 1))
		_, err := payments.ParseEvent(secret, tampered, header, 0, now)
		require.ErrorIs(t, err, payments.ErrInvalidSignature)
	})

	t.Run("stale delivery", func(t *testing.T) {
		_, err := payments.ParseEvent(secret, payload, header, time.Minute, now.Add(time.Hour))
		require.ErrorIs(t, err, payments.ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := payments.ParseEvent(secret, payload, "", 0, now)
		require.ErrorIs(t, err, payments.ErrInvalidSignature)
	})
}

func TestSubscriptionLapsed(t *testing.T) {
	t.Parallel()

	for _, status := range []string{"canceled", "unpaid", "incomplete_expired", "past_due"} {
		require.True(t, payments.SubscriptionLapsed(status), status)
	}
	for _, status := range []string{"active", "trialing", "incomplete", ""} {
		require.False(t, payments.SubscriptionLapsed(status), status)
	}
}
