package engine

import (
	"context"
	"errors"

	"github.com/yangwenmai/force/internal/model"
	"github.com/yangwenmai/force/internal/store"
)

// StartBlock opens a block against an artifact, snapshotting contentBefore.
func (e *Engine) StartBlock(ctx context.Context, artifactID string, diffType model.DiffType, contentBefore string) (*model.Block, error) {
	if !diffType.Valid() {
		return nil, model.ErrInvalidDiffType
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	b := model.NewBlock(e.newID(), artifactID, diffType, contentBefore, now)
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetArtifact(ctx, artifactID); err != nil {
			return err
		}
		running, err := q.GetRunningBlock(ctx, artifactID)
		if err != nil {
			return err
		}
		if running != nil {
			return model.ErrBlockAlreadyRunning
		}
		if err := q.InsertBlock(ctx, b); err != nil {
			return err
		}
		return q.AppendEvent(ctx, model.Event{
			Kind:       model.EventBlockStarted,
			ArtifactID: artifactID,
			BlockID:    b.ID,
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("block started", "block_id", b.ID, "artifact_id", artifactID, "expected_diff", diffType)
	return &b, nil
}

// EndBlock closes a running block and classifies it by diff detection.
func (e *Engine) EndBlock(ctx context.Context, blockID, contentAfter string) (*model.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ended *model.Block
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		b, err := e.endBlock(ctx, q, blockID, func(*model.Block) (string, error) { return contentAfter, nil })
		ended = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// endBlock resolves the after-content only once the block is known to be running.
func (e *Engine) endBlock(ctx context.Context, q *store.Queries, blockID string, after func(*model.Block) (string, error)) (*model.Block, error) {
	b, err := q.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BlockRunning {
		return nil, model.ErrBlockNotRunning
	}
	content, err := after(b)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := b.End(content, now); err != nil {
		return nil, err
	}
	if err := q.EndBlock(ctx, b); err != nil {
		return nil, err
	}
	if err := q.AppendEvent(ctx, model.Event{
		Kind:       model.EventBlockEnded,
		ArtifactID: b.ArtifactID,
		BlockID:    b.ID,
		Positive:   b.HasDiff,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}
	e.log.Info("block ended", "block_id", b.ID, "status", b.Status, "expected_diff", b.ExpectedDiffType, "has_diff", b.HasDiff)
	return b, nil
}

// SweepExpired force-ends every running block older than the block duration.
// A nil currentContent uses each block's artifact content as stored. Each
// block is ended in its own transaction; failures are logged and skipped.
func (e *Engine) SweepExpired(ctx context.Context, currentContent *string) ([]model.Block, error) {
	cutoff := e.now().Add(-e.blockDuration)
	expired, err := e.store.ListRunningBlocksStartedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var ended []model.Block
	for _, candidate := range expired {
		b, err := e.expire(ctx, candidate.ID, currentContent)
		if errors.Is(err, model.ErrBlockNotRunning) {
			continue
		}
		if err != nil {
			e.log.Error("auto-end block failed", "block_id", candidate.ID, "error", err)
			continue
		}
		e.log.Info("block auto-ended", "block_id", b.ID, "started", b.StartTime, "status", b.Status)
		ended = append(ended, *b)
	}
	return ended, nil
}

func (e *Engine) expire(ctx context.Context, blockID string, currentContent *string) (*model.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ended *model.Block
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		b, err := e.endBlock(ctx, q, blockID, func(b *model.Block) (string, error) {
			if currentContent != nil {
				return *currentContent, nil
			}
			a, err := q.GetArtifact(ctx, b.ArtifactID)
			if err != nil {
				return "", err
			}
			return a.Content, nil
		})
		ended = b
		return err
	})
	return ended, err
}

// RunningBlock returns a running block, or nil.
func (e *Engine) RunningBlock(ctx context.Context) (*model.Block, error) {
	return e.store.GetAnyRunningBlock(ctx)
}

// BlockHistory returns the blocks of an artifact, most recent first.
func (e *Engine) BlockHistory(ctx context.Context, artifactID string) ([]model.Block, error) {
	return e.store.ListBlocks(ctx, artifactID)
}

// BlockStats aggregates the blocks of an artifact.
func (e *Engine) BlockStats(ctx context.Context, artifactID string) (model.BlockStats, error) {
	return e.store.BlockStats(ctx, artifactID)
}
