package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrNegativeBalance is returned when a credit adjustment would take a
	// balance below zero. Nothing is written.
	ErrNegativeBalance = errors.New("store: balance would go negative")
)

// Store is the root data access interface. Sub-repositories returned from a
// Tx run inside that transaction; a Tx cannot start another one.
type Store interface {
	Users() Users
	Ledger() Ledger
	Checkouts() Checkouts
	WebhookEvents() WebhookEvents
	Posters() Posters
	Revocations() Revocations
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts u. A taken email gives ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by lowercased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	UpdateDisplayName(ctx context.Context, userID, name string) error

	// AdjustCredits adds delta to the balance in one statement and returns
	// the new balance, or ErrNegativeBalance without writing.
	AdjustCredits(ctx context.Context, userID string, delta int) (int, error)

	// SetPlan updates the ad-free entitlement.
	SetPlan(ctx context.Context, userID string, adFree bool, plan string) error
}

type Ledger interface {
	Append(ctx context.Context, e domain.CreditEvent) error

	// ListByUser returns the newest events first. An empty kind lists all.
	ListByUser(ctx context.Context, userID string, kind domain.CreditEventKind, limit int) ([]domain.CreditEvent, error)

	// Get returns one of the user's events.
	Get(ctx context.Context, userID, id string) (domain.CreditEvent, error)
}

type Checkouts interface {
	Create(ctx context.Context, c domain.CheckoutSession) error
	Get(ctx context.Context, id string) (domain.CheckoutSession, error)

	// MarkPaid moves a session in one of the from states (open when none
	// are given) to paid. It reports false otherwise, so completion happens
	// at most once.
	MarkPaid(ctx context.Context, id, customerEmail string, at time.Time, from ...string) (bool, error)

	// ExpireStale closes open sessions past their expiry.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type WebhookEvents interface {
	// Record stores a provider event id. It reports false if the id was
	// already recorded.
	Record(ctx context.Context, id string, at time.Time) (bool, error)
}

type Posters interface {
	Create(ctx context.Context, p domain.Poster) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Poster, error)
	Get(ctx context.Context, userID, id string) (domain.Poster, error)
	Delete(ctx context.Context, userID, id string) error
}

type Revocations interface {
	Revoke(ctx context.Context, t domain.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey inserts an active key. A duplicate kid gives
	// ErrAlreadyExists.
	CreateSigningKey(ctx context.Context, k domain.SigningKey) error

	// ListUsable returns keys that have not expired at now, oldest first.
	ListUsable(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// Retire stops an active key from signing. It stays usable until
	// expiresAt. Retiring an unknown or already retired key gives ErrNotFound.
	Retire(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
