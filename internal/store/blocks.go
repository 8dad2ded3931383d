package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

const blockColumns = `id, artifact_id, expected_diff_type, start_time, end_time, content_before, content_after, has_diff, status`

// InsertBlock stores a new block. A second running block for the same
// artifact fails with model.ErrBlockAlreadyRunning.
func (q *Queries) InsertBlock(ctx context.Context, b model.Block) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ArtifactID, b.ExpectedDiffType, toMillis(b.StartTime), nullableMillis(b.EndTime),
		b.ContentBefore, b.ContentAfter, boolInt(b.HasDiff), b.Status,
	)
	if isUniqueViolation(err) {
		return model.ErrBlockAlreadyRunning
	}
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// GetBlock returns the block with the given id or model.ErrBlockNotFound.
func (q *Queries) GetBlock(ctx context.Context, id string) (*model.Block, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = ?`, id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return b, nil
}

// GetRunningBlock returns the running block of an artifact, or nil.
func (q *Queries) GetRunningBlock(ctx context.Context, artifactID string) (*model.Block, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE artifact_id = ? AND status = ?`,
		artifactID, model.BlockRunning)
	return optionalBlock(scanBlock(row))
}

// GetAnyRunningBlock returns the most recently started running block, or nil.
func (q *Queries) GetAnyRunningBlock(ctx context.Context) (*model.Block, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE status = ? ORDER BY start_time DESC LIMIT 1`,
		model.BlockRunning)
	return optionalBlock(scanBlock(row))
}

// ListRunningBlocksStartedBefore returns running blocks whose start time is
// strictly before cutoff, oldest first.
func (q *Queries) ListRunningBlocksStartedBefore(ctx context.Context, cutoff time.Time) ([]model.Block, error) {
	return q.listBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE status = ? AND start_time < ? ORDER BY start_time ASC`,
		model.BlockRunning, toMillis(cutoff))
}

// ListBlocks returns the blocks of an artifact, most recent first.
func (q *Queries) ListBlocks(ctx context.Context, artifactID string) ([]model.Block, error) {
	return q.listBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE artifact_id = ? ORDER BY start_time DESC, rowid DESC`,
		artifactID)
}

// BlockStats aggregates the blocks of an artifact.
func (q *Queries) BlockStats(ctx context.Context, artifactID string) (model.BlockStats, error) {
	var st model.BlockStats
	row := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN has_diff = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM blocks WHERE artifact_id = ?`,
		model.BlockCompleted, model.BlockFailed, artifactID)
	if err := row.Scan(&st.Total, &st.Completed, &st.WithDiff, &st.Failed); err != nil {
		return st, fmt.Errorf("block stats: %w", err)
	}
	return st, nil
}

// EndBlock persists the outcome of b, provided the stored block is still
// running. Otherwise it reports model.ErrBlockNotRunning and writes nothing.
func (q *Queries) EndBlock(ctx context.Context, b *model.Block) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE blocks SET end_time = ?, content_after = ?, has_diff = ?, status = ?
		WHERE id = ? AND status = ?`,
		nullableMillis(b.EndTime), b.ContentAfter, boolInt(b.HasDiff), b.Status,
		b.ID, model.BlockRunning,
	)
	if err != nil {
		return fmt.Errorf("end block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end block: %w", err)
	}
	if n == 0 {
		return model.ErrBlockNotRunning
	}
	return nil
}

func (q *Queries) listBlocks(ctx context.Context, query string, args ...any) ([]model.Block, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []model.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, rows.Err()
}

func optionalBlock(b *model.Block, err error) (*model.Block, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running block: %w", err)
	}
	return b, nil
}

func scanBlock(row scanner) (*model.Block, error) {
	var (
		b       model.Block
		start   int64
		end     sql.NullInt64
		after   sql.NullString
		hasDiff int
	)
	err := row.Scan(&b.ID, &b.ArtifactID, &b.ExpectedDiffType, &start, &end, &b.ContentBefore, &after, &hasDiff, &b.Status)
	if err != nil {
		return nil, err
	}
	b.StartTime = fromMillis(start)
	b.EndTime = timePtr(end)
	b.ContentAfter = stringPtr(after)
	b.HasDiff = hasDiff == 1
	return &b, nil
}
