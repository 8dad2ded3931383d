package store

import (
	"context"
	"fmt"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

// AppendEvent adds an entry to the reliability event log.
func (q *Queries) AppendEvent(ctx context.Context, e model.Event) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO events (kind, artifact_id, block_id, positive, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.ArtifactID, e.BlockID, boolInt(e.Positive), toMillis(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns events at or after since in log order. A zero since
// returns the whole log.
func (q *Queries) ListEvents(ctx context.Context, since time.Time) ([]model.Event, error) {
	var from int64
	if !since.IsZero() {
		from = toMillis(since)
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, kind, artifact_id, block_id, positive, occurred_at FROM events WHERE occurred_at >= ? ORDER BY id ASC`,
		from)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e        model.Event
			positive int
			at       int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.ArtifactID, &e.BlockID, &positive, &at); err != nil {
			return nil, err
		}
		e.Positive = positive == 1
		e.OccurredAt = fromMillis(at)
		events = append(events, e)
	}
	return events, rows.Err()
}
