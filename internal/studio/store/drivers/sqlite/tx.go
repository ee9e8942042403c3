package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the outer Store owns the connection.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.tx} }
func (t *txStore) Ledger() store.Ledger               { return &ledgerRepo{q: t.tx} }
func (t *txStore) Checkouts() store.Checkouts         { return &checkoutsRepo{q: t.tx} }
func (t *txStore) WebhookEvents() store.WebhookEvents { return &webhookEventsRepo{q: t.tx} }
func (t *txStore) Posters() store.Posters             { return &postersRepo{q: t.tx} }
func (t *txStore) Revocations() store.Revocations     { return &revocationsRepo{q: t.tx} }
func (t *txStore) SigningKeys() store.SigningKeys     { return &signingKeysRepo{q: t.tx} }

// ApplyMigrations is a no-op inside a transaction.
func (t *txStore) ApplyMigrations() error { return nil }
