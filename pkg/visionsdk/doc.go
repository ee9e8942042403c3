/*
Package visionsdk is the client side of the Mini-Visionary poster studio: an
API binding (Client) and the session and credit state manager (Store) every
screen reads from and writes through.

# Client vs Store

Client is a thin, stateless binding of the HTTP API. Store owns the session
token and the cached profile:

	store := visionsdk.NewStore(visionsdk.NewClient("http://localhost:8080"))

	if _, err := store.Login(ctx, email, password); errors.Is(err, visionsdk.ErrInvalidCredentials) {
		// ask again
	}

	credits := store.CachedCredits() // instant, no network

# Optimistic credits

Spending actions are applied to the displayed balance before the request is
sent and reconciled when it returns. The server's number always wins:

	poster, err := store.GeneratePoster(ctx, visionsdk.PosterRequest{Prompt: "retro synthwave city"})
	switch {
	case errors.Is(err, visionsdk.ErrInsufficientCredits):
		// nothing was sent if the local balance was already too low
	case errors.Is(err, visionsdk.ErrActionPending):
		// a generation is already running
	}

A failed action rolls its delta back exactly once. Cancel aborts an action
and ignores its late response.

# Sessions end in one place

Logout and any 401 run Teardown, which clears the token, the profile and
pending actions together. OnTeardown lets callers drop persisted tokens.

# Purchases

Checkouts redirect to a hosted payment page, so nothing is applied
optimistically. After the redirect, confirm against the server:

	c := store.ConfirmCheckout(ctx, sessionID, visionsdk.DefaultRetryPolicy())
	if c.State == visionsdk.ConfirmUnconfirmed {
		// errors.Is(c.Err, visionsdk.ErrPaymentUnconfirmed)
	}

# Access gating

Gate maps views to Public, AuthOnly or Protected and decides from token
presence alone:

	d := visionsdk.DefaultWebViews().Check("/wallet", store.Authenticated())
	if !d.Allowed {
		navigate(d.Redirect)
	}
*/
package visionsdk
