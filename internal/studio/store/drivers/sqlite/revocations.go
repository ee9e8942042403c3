package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
)

type revocationsRepo struct {
	q dbtx
}

func (r *revocationsRepo) Revoke(ctx context.Context, t domain.RevokedToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (jti) DO NOTHING`,
		t.JTI, t.UserID, formatTime(t.ExpiresAt),
	)
	return err
}

func (r *revocationsRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *revocationsRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
