package store

import (
	"context"
	"fmt"

	"github.com/yangwenmai/force/internal/model"
)

// ---------------------------------------------------------------------------
// Autopsies
// ---------------------------------------------------------------------------

// InsertAutopsy appends a post-ship autopsy.
func (q *Queries) InsertAutopsy(ctx context.Context, a model.Autopsy) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO autopsies (id, artifact_id, created_at, shipped_on_time, scope_respected,
			external_feedback_received, one_clear_takeaway, repeat_artifact_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ArtifactID, toMillis(a.CreatedAt), boolInt(a.ShippedOnTime), boolInt(a.ScopeRespected),
		boolInt(a.ExternalFeedbackReceived), boolInt(a.OneClearTakeaway), boolInt(a.RepeatArtifactClass),
	)
	if err != nil {
		return fmt.Errorf("insert autopsy: %w", err)
	}
	return nil
}

// ListAutopsies returns autopsies newest first. An empty artifactID lists all.
func (q *Queries) ListAutopsies(ctx context.Context, artifactID string) ([]model.Autopsy, error) {
	query := `SELECT id, artifact_id, created_at, shipped_on_time, scope_respected,
		external_feedback_received, one_clear_takeaway, repeat_artifact_class FROM autopsies`
	var args []any
	if artifactID != "" {
		query += ` WHERE artifact_id = ?`
		args = append(args, artifactID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list autopsies: %w", err)
	}
	defer rows.Close()

	var out []model.Autopsy
	for rows.Next() {
		var (
			a                                 model.Autopsy
			created                           int64
			onTime, scope, feedback, one, rep int
		)
		if err := rows.Scan(&a.ID, &a.ArtifactID, &created, &onTime, &scope, &feedback, &one, &rep); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(created)
		a.ShippedOnTime = onTime == 1
		a.ScopeRespected = scope == 1
		a.ExternalFeedbackReceived = feedback == 1
		a.OneClearTakeaway = one == 1
		a.RepeatArtifactClass = rep == 1
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Skipped blocks
// ---------------------------------------------------------------------------

// InsertSkippedBlock appends a skipped block to the failure log.
func (q *Queries) InsertSkippedBlock(ctx context.Context, s model.SkippedBlock) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO skipped_blocks (id, artifact_id, scheduled_time, skipped_at, reason) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.ArtifactID, toMillis(s.ScheduledTime), toMillis(s.SkippedAt), s.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert skipped block: %w", err)
	}
	return nil
}

// ListSkippedBlocks returns skipped blocks newest first. An empty artifactID lists all.
func (q *Queries) ListSkippedBlocks(ctx context.Context, artifactID string) ([]model.SkippedBlock, error) {
	query := `SELECT id, artifact_id, scheduled_time, skipped_at, reason FROM skipped_blocks`
	var args []any
	if artifactID != "" {
		query += ` WHERE artifact_id = ?`
		args = append(args, artifactID)
	}
	query += ` ORDER BY skipped_at DESC, rowid DESC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list skipped blocks: %w", err)
	}
	defer rows.Close()

	var out []model.SkippedBlock
	for rows.Next() {
		var (
			s                  model.SkippedBlock
			scheduled, skipped int64
		)
		if err := rows.Scan(&s.ID, &s.ArtifactID, &scheduled, &skipped, &s.Reason); err != nil {
			return nil, err
		}
		s.ScheduledTime = fromMillis(scheduled)
		s.SkippedAt = fromMillis(skipped)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Checkpoints
// ---------------------------------------------------------------------------

// InsertCheckpoint records a checkpoint evaluation.
func (q *Queries) InsertCheckpoint(ctx context.Context, c model.Checkpoint) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, artifact_id, checkpoint_date, required_completion_pct,
			actual_completion_pct, passed, scope_reduction_applied)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ArtifactID, toMillis(c.CheckpointDate), c.RequiredCompletionPct,
		c.ActualCompletionPct, boolInt(c.Passed), boolInt(c.ScopeReductionApplied),
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// ListCheckpoints returns the checkpoints of an artifact, oldest first.
func (q *Queries) ListCheckpoints(ctx context.Context, artifactID string) ([]model.Checkpoint, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, artifact_id, checkpoint_date, required_completion_pct, actual_completion_pct,
			passed, scope_reduction_applied
		FROM checkpoints WHERE artifact_id = ? ORDER BY checkpoint_date ASC, rowid ASC`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []model.Checkpoint
	for rows.Next() {
		var (
			c               model.Checkpoint
			date            int64
			passed, reduced int
		)
		if err := rows.Scan(&c.ID, &c.ArtifactID, &date, &c.RequiredCompletionPct, &c.ActualCompletionPct, &passed, &reduced); err != nil {
			return nil, err
		}
		c.CheckpointDate = fromMillis(date)
		c.Passed = passed == 1
		c.ScopeReductionApplied = reduced == 1
		out = append(out, c)
	}
	return out, rows.Err()
}
