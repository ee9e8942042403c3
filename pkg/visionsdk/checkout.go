package visionsdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConfirmState is the outcome of confirming a checkout.
type ConfirmState string

const (
	ConfirmPending     ConfirmState = "pending"
	ConfirmConfirmed   ConfirmState = "confirmed"
	ConfirmUnconfirmed ConfirmState = "unconfirmed"
	ConfirmError       ConfirmState = "error"
)

// Confirmation reports where a checkout stands. Err is set for every state
// except Confirmed; Unconfirmed always matches ErrPaymentUnconfirmed.
type Confirmation struct {
	SessionID     string
	State         ConfirmState
	Status        string
	CustomerEmail string
	Attempts      int
	Err           error
}

// RetryPolicy bounds the confirmation poll.
type RetryPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
	MaxAttempts     int
	// Jitter is the backoff randomization factor in [0, 1).
	Jitter float64

	// OnRetry, if set, is called before each wait with the latest result.
	OnRetry func(c Confirmation, wait time.Duration)
}

// DefaultRetryPolicy polls for about 30 seconds: 1s, 2s, 4s, 8s, 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		Multiplier:      2,
		MaxInterval:     8 * time.Second,
		MaxElapsed:      30 * time.Second,
		MaxAttempts:     6,
		Jitter:          0.2,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	def := DefaultRetryPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = def.MaxElapsed
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsed
	b.RandomizationFactor = p.Jitter
	b.Reset()

	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}

// classifyCheckout maps one status fetch onto a Confirmation.
func classifyCheckout(id string, st *CheckoutStatus, err error) Confirmation {
	c := Confirmation{SessionID: id}
	if err != nil {
		c.State, c.Err = ConfirmError, err
		return c
	}

	c.Status, c.CustomerEmail = st.Status, st.CustomerEmail
	switch st.Status {
	case CheckoutPaid:
		c.State = ConfirmConfirmed
	case CheckoutOpen, CheckoutUnpaid:
		c.State = ConfirmUnconfirmed
		c.Err = fmt.Errorf("%w: checkout %s is %s", ErrPaymentUnconfirmed, id, st.Status)
	default:
		c.State = ConfirmError
		c.Err = fmt.Errorf("%w: checkout %s ended as %q", ErrPaymentUnconfirmed, id, st.Status)
	}
	return c
}

// StartCheckout creates a hosted checkout. Nothing is applied locally:
// credits only change once the payment is confirmed.
func (s *Store) StartCheckout(ctx context.Context, sku, successURL, cancelURL string) (*CheckoutResponse, error) {
	var out *CheckoutResponse
	err := s.authed(ctx, func(ctx context.Context, token string) error {
		var err error
		out, err = s.client.Checkout(ctx, token, CheckoutRequest{SKU: sku, SuccessURL: successURL, CancelURL: cancelURL})
		return err
	})
	return out, err
}

// CheckCheckout asks the server once whether the checkout was paid. A paid
// checkout refreshes the profile so the new balance shows up.
func (s *Store) CheckCheckout(ctx context.Context, sessionID string) Confirmation {
	var st *CheckoutStatus
	err := s.authed(ctx, func(ctx context.Context, token string) error {
		var err error
		st, err = s.client.CheckoutStatus(ctx, token, sessionID)
		return err
	})

	c := classifyCheckout(sessionID, st, err)
	c.Attempts = 1
	if c.State == ConfirmConfirmed {
		if _, err := s.RefreshProfile(ctx); err != nil {
			s.log.Warn("refresh after confirmed checkout failed", "session_id", sessionID, "err", err)
		}
	}
	return c
}

// ConfirmCheckout polls the checkout until it is paid, reaches a terminal
// state, or the policy gives up. Network and server failures are retried
// like an unpaid checkout. Only one confirmation runs at a time and
// Cancel(ActionPurchase) stops it.
func (s *Store) ConfirmCheckout(ctx context.Context, sessionID string, policy RetryPolicy) Confirmation {
	last := Confirmation{SessionID: sessionID, State: ConfirmPending}

	err := s.Mutate(ctx, Mutation{
		Kind: ActionPurchase,
		Send: func(ctx context.Context, token string) (Result, error) {
			op := func() error {
				attempts := last.Attempts + 1
				st, err := s.client.CheckoutStatus(ctx, token, sessionID)
				last = classifyCheckout(sessionID, st, err)
				last.Attempts = attempts

				switch {
				case last.State == ConfirmConfirmed:
					return nil
				case last.State == ConfirmUnconfirmed:
					return last.Err
				case errors.Is(last.Err, ErrNetwork), errors.Is(last.Err, ErrServer):
					return last.Err
				default:
					return backoff.Permanent(last.Err)
				}
			}
			notify := func(_ error, wait time.Duration) {
				if policy.OnRetry != nil {
					policy.OnRetry(last, wait)
				}
			}

			if err := backoff.RetryNotify(op, policy.backOff(ctx), notify); err != nil {
				return Result{}, err
			}
			// Credits came from the server; the store fetches the profile.
			return Result{}, nil
		},
	})

	if err != nil && last.State != ConfirmConfirmed {
		if last.State == ConfirmPending || isCanceled(err) || !errors.Is(err, ErrPaymentUnconfirmed) {
			last.State = ConfirmError
		}
		last.Err = err
	}
	return last
}

// Wallet fetches the balance and receipts. The balance is authoritative
// and replaces the cached one.
func (s *Store) Wallet(ctx context.Context) (*Wallet, error) {
	token, epoch, seq, err := s.dispatch()
	if err != nil {
		return nil, err
	}

	w, err := s.client.Wallet(ctx, token)
	if err != nil {
		if IsUnauthenticated(err) {
			s.teardownIf(epoch)
		}
		return nil, err
	}

	s.mu.Lock()
	s.adoptCreditsLocked(w.Credits, epoch, seq)
	s.mu.Unlock()
	return w, nil
}
