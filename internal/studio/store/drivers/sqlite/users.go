package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, display_name, password_hash, credits, ad_free, plan, created_at, updated_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                domain.User
		created, updated string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.Credits, &u.AdFree, &u.Plan, &created, &updated); err != nil {
		return domain.User{}, mapNotFound(err)
	}

	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return domain.User{}, err
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	if u.Plan == "" {
		u.Plan = domain.PlanFree
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.DisplayName, u.PasswordHash,
		u.Credits, u.AdFree, u.Plan, formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
}

func (r *usersRepo) UpdateDisplayName(ctx context.Context, userID, name string) error {
	return r.exec1(ctx,
		`UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`,
		name, formatTime(time.Now()), userID)
}

func (r *usersRepo) AdjustCredits(ctx context.Context, userID string, delta int) (int, error) {
	var balance int
	err := r.q.QueryRowContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ?
		 WHERE id = ? AND credits + ? >= 0
		 RETURNING credits`,
		delta, formatTime(time.Now()), userID, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}

	err = mapNotFound(err)
	if !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}

	// No row updated: either the user is gone or the balance is too low.
	if _, err := r.GetUserByID(ctx, userID); err != nil {
		return 0, err
	}
	return 0, store.ErrNegativeBalance
}

func (r *usersRepo) SetPlan(ctx context.Context, userID string, adFree bool, plan string) error {
	return r.exec1(ctx,
		`UPDATE users SET ad_free = ?, plan = ?, updated_at = ? WHERE id = ?`,
		adFree, plan, formatTime(time.Now()), userID)
}

// exec1 runs a single-row update and reports ErrNotFound when nothing matched.
func (r *usersRepo) exec1(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
