package studio_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
	"github.com/stretchr/testify/require"
)

func TestProductsCatalog(t *testing.T) {
	baseURL := setupStudioContainer(t)

	items, err := visionsdk.NewClient(baseURL).Products(t.Context())
	require.NoError(t, err)

	skus := make([]string, 0, len(items))
	for _, p := range items {
		skus = append(skus, p.SKU)
	}
	require.ElementsMatch(t, []string{"starter", "standard", "studio", "adfree"}, skus)
}

// TestSimulatedCheckout pays through the hosted simulator and confirms it.
func TestSimulatedCheckout(t *testing.T) {
	baseURL := setupStudioContainer(t)
	st := newSignedUpStore(t, baseURL, "ada@example.com")

	co, err := st.StartCheckout(t.Context(), "standard", successURL, cancelURL)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(co.SessionID, "cs_"))

	c := st.CheckCheckout(t.Context(), co.SessionID)
	require.Equal(t, visionsdk.ConfirmUnconfirmed, c.State)
	require.ErrorIs(t, c.Err, visionsdk.ErrPaymentUnconfirmed)
	require.Equal(t, 20, st.CachedCredits())

	resp, err := noFollow.Get(reachable(t, baseURL, co.URL))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	c = st.ConfirmCheckout(t.Context(), co.SessionID, fastPolicy())
	require.Equal(t, visionsdk.ConfirmConfirmed, c.State, "err: %v", c.Err)
	require.Equal(t, 120, st.CachedCredits())

	w, err := st.Wallet(t.Context())
	require.NoError(t, err)
	require.Len(t, w.Receipts, 1)
	require.Equal(t, "standard", w.Receipts[0].SKU)
	require.InDelta(t, 15.0, w.Receipts[0].Amount, 0.001)
}

// TestWebhookIsIdempotent delivers the same signed event twice and checks the
// credits land once.
func TestWebhookIsIdempotent(t *testing.T) {
	baseURL := setupStudioContainer(t)
	st := newSignedUpStore(t, baseURL, "grace@example.com")

	co, err := st.StartCheckout(t.Context(), "starter", successURL, cancelURL)
	require.NoError(t, err)

	payload, sig, err := payments.SignEvent(webhookSecret, payments.Event{
		ID:   "evt_e2e_1",
		Type: payments.EventCheckoutCompleted,
		Data: payments.EventData{SessionID: co.SessionID, CustomerEmail: "grace@example.com"},
	}, time.Now())
	require.NoError(t, err)

	for range 3 {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+"/payments/webhook", bytes.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set(payments.SignatureHeader, sig)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	c := st.ConfirmCheckout(t.Context(), co.SessionID, fastPolicy())
	require.Equal(t, visionsdk.ConfirmConfirmed, c.State, "err: %v", c.Err)
	require.Equal(t, 80, st.CachedCredits())

	// A forged signature is refused.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+"/payments/webhook", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(payments.SignatureHeader, "t=1,v1=deadbeef")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
