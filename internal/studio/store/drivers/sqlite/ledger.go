package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
)

type ledgerRepo struct {
	q dbtx
}

const (
	ledgerColumns = `id, user_id, kind, amount, balance_after, sku, amount_cents, currency, provider_id, note, created_at`
	maxLedgerPage = 100
)

func scanCreditEvent(row rowScanner) (domain.CreditEvent, error) {
	var (
		e       domain.CreditEvent
		kind    string
		created string
	)
	if err := row.Scan(&e.ID, &e.UserID, &kind, &e.Amount, &e.BalanceAfter, &e.SKU,
		&e.AmountCents, &e.Currency, &e.ProviderID, &e.Note, &created); err != nil {
		return domain.CreditEvent{}, mapNotFound(err)
	}
	e.Kind = domain.CreditEventKind(kind)

	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return domain.CreditEvent{}, err
	}
	return e, nil
}

func (r *ledgerRepo) Append(ctx context.Context, e domain.CreditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO credit_events (`+ledgerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Kind), e.Amount, e.BalanceAfter, e.SKU,
		e.AmountCents, e.Currency, e.ProviderID, e.Note, formatTime(e.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *ledgerRepo) ListByUser(
	ctx context.Context,
	userID string,
	kind domain.CreditEventKind,
	limit int,
) ([]domain.CreditEvent, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM credit_events
		 WHERE user_id = ? AND (? = '' OR kind = ?)
		 ORDER BY id DESC
		 LIMIT ?`,
		userID, string(kind), string(kind), clampLimit(limit, maxLedgerPage),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.CreditEvent, 0)
	for rows.Next() {
		e, err := scanCreditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *ledgerRepo) Get(ctx context.Context, userID, id string) (domain.CreditEvent, error) {
	return scanCreditEvent(r.q.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM credit_events WHERE user_id = ? AND id = ?`,
		userID, id))
}
