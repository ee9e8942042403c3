package sqlite

import (
	"context"
	"time"
)

type webhookEventsRepo struct {
	q dbtx
}

func (r *webhookEventsRepo) Record(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO webhook_events (id, processed_at) VALUES (?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, formatTime(at),
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
