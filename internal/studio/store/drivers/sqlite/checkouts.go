package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
)

type checkoutsRepo struct {
	q dbtx
}

const checkoutColumns = `id, user_id, sku, mode, status, amount_cents, currency, customer_email,
	success_url, cancel_url, created_at, completed_at, expires_at`

func scanCheckout(row rowScanner) (domain.CheckoutSession, error) {
	var (
		c                domain.CheckoutSession
		created, expires string
		completed        sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.SKU, &c.Mode, &c.Status, &c.AmountCents,
		&c.Currency, &c.CustomerEmail, &c.SuccessURL, &c.CancelURL,
		&created, &completed, &expires); err != nil {
		return domain.CheckoutSession{}, mapNotFound(err)
	}

	var err error
	if c.CreatedAt, err = parseTime(created); err != nil {
		return domain.CheckoutSession{}, err
	}
	if c.ExpiresAt, err = parseTime(expires); err != nil {
		return domain.CheckoutSession{}, err
	}
	if c.CompletedAt, err = mapNullTimePtr(completed); err != nil {
		return domain.CheckoutSession{}, err
	}
	return c, nil
}

func (r *checkoutsRepo) Create(ctx context.Context, c domain.CheckoutSession) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = domain.CheckoutOpen
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO checkout_sessions (`+checkoutColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.SKU, c.Mode, c.Status, c.AmountCents, c.Currency,
		c.CustomerEmail, c.SuccessURL, c.CancelURL,
		formatTime(c.CreatedAt), mapOptionalTime(c.CompletedAt), formatTime(c.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *checkoutsRepo) Get(ctx context.Context, id string) (domain.CheckoutSession, error) {
	return scanCheckout(r.q.QueryRowContext(ctx,
		`SELECT `+checkoutColumns+` FROM checkout_sessions WHERE id = ?`, id))
}

func (r *checkoutsRepo) MarkPaid(ctx context.Context, id, customerEmail string, at time.Time, from ...string) (bool, error) {
	if len(from) == 0 {
		from = []string{domain.CheckoutOpen}
	}
	args := []any{customerEmail, formatTime(at), id}
	for _, status := range from {
		args = append(args, status)
	}

	res, err := r.q.ExecContext(ctx,
		`UPDATE checkout_sessions
		 SET status = 'paid', customer_email = ?, completed_at = ?
		 WHERE id = ? AND status IN (?`+strings.Repeat(", ?", len(from)-1)+`)`,
		args...,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *checkoutsRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = 'expired'
		 WHERE status = 'open' AND expires_at <= ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
