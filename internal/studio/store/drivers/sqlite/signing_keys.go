package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

type signingKeysRepo struct {
	q dbtx
}

const signingKeyColumns = `kid, algorithm, private_key_sealed, created_at, retired_at, expires_at`

func scanSigningKey(row rowScanner) (domain.SigningKey, error) {
	var (
		k                  domain.SigningKey
		created            string
		retired, expiresAt sql.NullString
	)
	if err := row.Scan(&k.Kid, &k.Algorithm, &k.PrivateKeySealed, &created, &retired, &expiresAt); err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}

	var err error
	if k.CreatedAt, err = parseTime(created); err != nil {
		return domain.SigningKey{}, err
	}
	if k.RetiredAt, err = mapNullTimePtr(retired); err != nil {
		return domain.SigningKey{}, err
	}
	if k.ExpiresAt, err = mapNullTimePtr(expiresAt); err != nil {
		return domain.SigningKey{}, err
	}
	return k, nil
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, k domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		k.Kid, k.Algorithm, k.PrivateKeySealed, formatTime(k.CreatedAt),
		mapOptionalTime(k.RetiredAt), mapOptionalTime(k.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *signingKeysRepo) ListUsable(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+signingKeyColumns+` FROM signing_keys
		 WHERE expires_at IS NULL OR expires_at > ?
		 ORDER BY created_at, kid`,
		formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]domain.SigningKey, 0)
	for rows.Next() {
		k, err := scanSigningKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) Retire(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE signing_keys SET retired_at = ?, expires_at = ?
		 WHERE kid = ? AND retired_at IS NULL`,
		formatTime(retiredAt), formatTime(expiresAt), kid,
	)
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

func (r *signingKeysRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM signing_keys WHERE expires_at IS NOT NULL AND expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
