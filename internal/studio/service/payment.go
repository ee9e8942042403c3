package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/metrics"
	"github.com/aussiebroadwan/minivisionary/internal/studio/payments"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
)

type PaymentService struct {
	Store         store.Store
	Catalog       *payments.Catalog
	Provider      payments.Provider
	Wallet        *WalletService
	Metrics       *metrics.Metrics
	WebhookSecret string

	// SignatureTolerance defaults to payments.DefaultSignatureTolerance.
	SignatureTolerance time.Duration
}

// CheckoutResult is where to send the user and the id to confirm later.
type CheckoutResult struct {
	SessionID string
	URL       string
}

func (s *PaymentService) Products() []domain.Product {
	return s.Catalog.All()
}

// Checkout opens a provider session for sku and records it as open.
func (s *PaymentService) Checkout(ctx context.Context, userID, sku, successURL, cancelURL string) (CheckoutResult, error) {
	product, ok := s.Catalog.Lookup(strings.TrimSpace(sku))
	if !ok {
		return CheckoutResult{}, ErrInvalidSKU
	}
	if !validRedirect(successURL) || !validRedirect(cancelURL) {
		return CheckoutResult{}, fmt.Errorf("%w: success_url and cancel_url must be absolute URLs", ErrInvalidInput)
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CheckoutResult{}, ErrNotFound
		}
		return CheckoutResult{}, err
	}

	sess, err := s.Provider.CreateSession(ctx, payments.SessionParams{
		UserID:        userID,
		SKU:           product.SKU,
		Mode:          product.Mode,
		AmountCents:   product.AmountCents,
		Currency:      product.Currency,
		CustomerEmail: user.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create checkout session: %w", err)
	}

	err = s.Store.Checkouts().Create(ctx, domain.CheckoutSession{
		ID:          sess.ID,
		UserID:      userID,
		SKU:         product.SKU,
		Mode:        product.Mode,
		Status:      domain.CheckoutOpen,
		AmountCents: product.AmountCents,
		Currency:    product.Currency,
		SuccessURL:  successURL,
		CancelURL:   cancelURL,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   sess.ExpiresAt,
	})
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("record checkout session: %w", err)
	}

	slogx.FromContext(ctx).Info("checkout started",
		slog.String("session_id", sess.ID), slog.String("sku", product.SKU))
	return CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// SessionStatus returns a session owned by userID. Other users' sessions
// are reported as not found.
func (s *PaymentService) SessionStatus(ctx context.Context, userID, id string) (domain.CheckoutSession, error) {
	sess, err := s.Store.Checkouts().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sess.UserID != userID) {
		return domain.CheckoutSession{}, ErrNotFound
	}
	return sess, err
}

// Complete fulfils a session the provider reports as paid. A session that
// housekeeping already expired is fulfilled too, since the provider has
// taken the payment. It is idempotent on both the event id and the session
// status, so a retried webhook changes nothing and reports false.
func (s *PaymentService) Complete(ctx context.Context, eventID, sessionID, customerEmail string) (bool, error) {
	return s.complete(ctx, eventID, sessionID, customerEmail, domain.CheckoutOpen, domain.CheckoutExpired)
}

func (s *PaymentService) complete(ctx context.Context, eventID, sessionID, customerEmail string, from ...string) (bool, error) {
	var (
		applied  bool
		purchase domain.CreditEvent
		sku      string
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if eventID != "" {
			fresh, err := tx.WebhookEvents().Record(ctx, eventID, time.Now())
			if err != nil {
				return err
			}
			if !fresh {
				return nil
			}
		}

		sess, err := tx.Checkouts().Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		product, ok := s.Catalog.Lookup(sess.SKU)
		if !ok {
			return fmt.Errorf("%w: session %s has unknown sku %q", ErrInvalidSKU, sess.ID, sess.SKU)
		}

		if customerEmail == "" {
			if u, err := tx.Users().GetUserByID(ctx, sess.UserID); err == nil {
				customerEmail = u.Email
			}
		}

		changed, err := tx.Checkouts().MarkPaid(ctx, sess.ID, customerEmail, time.Now(), from...)
		if err != nil || !changed {
			return err
		}

		if product.Mode == domain.ModeSubscription {
			if err := tx.Users().SetPlan(ctx, sess.UserID, true, domain.PlanAdFree); err != nil {
				return err
			}
		} else {
			purchase, err = applyCredits(ctx, tx, domain.CreditEvent{
				UserID:      sess.UserID,
				Kind:        domain.CreditPurchase,
				Amount:      product.Credits,
				SKU:         product.SKU,
				AmountCents: sess.AmountCents,
				Currency:    sess.Currency,
				ProviderID:  sess.ID,
			})
			if err != nil {
				return err
			}
		}

		applied = true
		sku = product.SKU
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.Metrics.CheckoutCompleted(sku)
		s.Wallet.record(purchase)
		slogx.FromContext(ctx).Info("checkout completed",
			slog.String("session_id", sessionID), slog.String("sku", sku))
	}
	return applied, nil
}

// HandleWebhook verifies and applies a provider delivery. Checkout
// completion fulfils the session; subscription events switch the ad-free
// plan. Other event types are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	tolerance := s.SignatureTolerance
	if tolerance <= 0 {
		tolerance = payments.DefaultSignatureTolerance
	}

	event, err := payments.ParseEvent(s.WebhookSecret, payload, signature, tolerance, time.Now())
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		_, err = s.Complete(ctx, event.ID, event.Data.SessionID, event.Data.CustomerEmail)
		return err
	case payments.EventInvoicePaid:
		return s.setSubscription(ctx, event, true)
	case payments.EventSubscriptionDeleted:
		return s.setSubscription(ctx, event, false)
	case payments.EventSubscriptionUpdated:
		if payments.SubscriptionLapsed(event.Data.Status) {
			return s.setSubscription(ctx, event, false)
		}
		slogx.FromContext(ctx).Info("webhook subscription still active",
			slog.String("event_id", event.ID), slog.String("status", event.Data.Status))
		return nil
	default:
		slogx.FromContext(ctx).Info("webhook ignored",
			slog.String("event_id", event.ID), slog.String("type", event.Type))
		return nil
	}
}

// setSubscription switches the ad-free plan of the subscriber behind event.
// Deliveries for customers we cannot find are acknowledged, as a retry
// would not find them either.
func (s *PaymentService) setSubscription(ctx context.Context, event payments.Event, active bool) error {
	plan := domain.PlanFree
	if active {
		plan = domain.PlanAdFree
	}

	var (
		userID    string
		duplicate bool
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		fresh, err := tx.WebhookEvents().Record(ctx, event.ID, time.Now())
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}

		id, err := subscriber(ctx, tx, event.Data)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Users().SetPlan(ctx, id, active, plan); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		userID = id
		return nil
	})
	if err != nil {
		return err
	}

	log := slogx.FromContext(ctx).With(slog.String("event_id", event.ID), slog.String("type", event.Type))
	switch {
	case duplicate:
		log.Info("webhook already processed")
	case userID == "":
		log.Info("webhook for unknown subscriber",
			slog.String("session_id", event.Data.SessionID))
	default:
		log.Info("subscription updated", slog.String("user_id", userID), slog.String("plan", plan))
	}
	return nil
}

// subscriber finds the user through the checkout session that started the
// subscription, falling back to the customer email.
func subscriber(ctx context.Context, tx store.Tx, data payments.EventData) (string, error) {
	if data.SessionID != "" {
		sess, err := tx.Checkouts().Get(ctx, data.SessionID)
		if err == nil {
			return sess.UserID, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}

	email := strings.ToLower(strings.TrimSpace(data.CustomerEmail))
	if email == "" {
		return "", store.ErrNotFound
	}
	u, err := tx.Users().GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// Simulate pays an open session on behalf of the local provider and returns
// it so the caller can redirect to its success URL. Expired sessions stay
// unpaid.
func (s *PaymentService) Simulate(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	if _, err := s.complete(ctx, "sim_"+sessionID, sessionID, "", domain.CheckoutOpen); err != nil {
		return domain.CheckoutSession{}, err
	}
	sess, err := s.Store.Checkouts().Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutSession{}, ErrNotFound
	}
	return sess, err
}

// CancelSubscription drops the ad-free plan.
func (s *PaymentService) CancelSubscription(ctx context.Context, userID string) (domain.User, error) {
	if err := s.Store.Users().SetPlan(ctx, userID, false, domain.PlanFree); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, userID)
}

func validRedirect(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.IsAbs() && u.Host != ""
}
