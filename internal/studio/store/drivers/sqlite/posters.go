package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

type postersRepo struct {
	q dbtx
}

const (
	posterColumns = `id, user_id, prompt, style, size, storage_key, url, width, height, created_at`
	maxPosterPage = 200
)

func scanPoster(row rowScanner) (domain.Poster, error) {
	var (
		p       domain.Poster
		created string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Prompt, &p.Style, &p.Size,
		&p.StorageKey, &p.URL, &p.Width, &p.Height, &created); err != nil {
		return domain.Poster{}, mapNotFound(err)
	}

	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Poster{}, err
	}
	return p, nil
}

func (r *postersRepo) Create(ctx context.Context, p domain.Poster) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO posters (`+posterColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Prompt, p.Style, p.Size, p.StorageKey, p.URL,
		p.Width, p.Height, formatTime(p.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *postersRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Poster, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+posterColumns+` FROM posters WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, clampLimit(limit, maxPosterPage),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posters := make([]domain.Poster, 0)
	for rows.Next() {
		p, err := scanPoster(rows)
		if err != nil {
			return nil, err
		}
		posters = append(posters, p)
	}
	return posters, rows.Err()
}

func (r *postersRepo) Get(ctx context.Context, userID, id string) (domain.Poster, error) {
	return scanPoster(r.q.QueryRowContext(ctx,
		`SELECT `+posterColumns+` FROM posters WHERE user_id = ? AND id = ?`, userID, id))
}

func (r *postersRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM posters WHERE user_id = ? AND id = ?`, userID, id)
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
