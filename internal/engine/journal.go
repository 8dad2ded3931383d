package engine

import (
	"context"
	"time"

	"github.com/yangwenmai/force/internal/model"
	"github.com/yangwenmai/force/internal/store"
)

// CreateAutopsy appends the post-ship reflection for an artifact.
func (e *Engine) CreateAutopsy(ctx context.Context, artifactID string, answers model.AutopsyAnswers) (*model.Autopsy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := model.NewAutopsy(e.newID(), artifactID, answers, e.now())
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetArtifact(ctx, artifactID); err != nil {
			return err
		}
		return q.InsertAutopsy(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// LogSkippedBlock permanently records a block that was scheduled but not run.
func (e *Engine) LogSkippedBlock(ctx context.Context, artifactID string, scheduled time.Time, reason string) (*model.SkippedBlock, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := model.NewSkippedBlock(e.newID(), artifactID, scheduled, reason, e.now())
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := q.GetArtifact(ctx, artifactID); err != nil {
			return err
		}
		return q.InsertSkippedBlock(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	e.log.Warn("block skipped", "artifact_id", artifactID, "scheduled", scheduled, "reason", s.Reason)
	return &s, nil
}

// Autopsies lists autopsies newest first; an empty artifactID lists all.
func (e *Engine) Autopsies(ctx context.Context, artifactID string) ([]model.Autopsy, error) {
	return e.store.ListAutopsies(ctx, artifactID)
}

// SkippedBlocks lists skipped blocks newest first; an empty artifactID lists all.
func (e *Engine) SkippedBlocks(ctx context.Context, artifactID string) ([]model.SkippedBlock, error) {
	return e.store.ListSkippedBlocks(ctx, artifactID)
}

// EvaluateCheckpoint records the progress of an open artifact against the
// required completion percentage.
func (e *Engine) EvaluateCheckpoint(ctx context.Context, artifactID string) (*model.Checkpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cp model.Checkpoint
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		if a.Status != model.StatusActive && a.Status != model.StatusLocked {
			return model.ErrNotActiveArtifact
		}
		cp = model.EvaluateCheckpoint(e.newID(), a, e.checkpointPct, e.now())
		return q.InsertCheckpoint(ctx, cp)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("checkpoint evaluated", "artifact_id", artifactID, "actual_pct", cp.ActualCompletionPct, "passed", cp.Passed)
	return &cp, nil
}

// Checkpoints lists the checkpoints of an artifact, oldest first.
func (e *Engine) Checkpoints(ctx context.Context, artifactID string) ([]model.Checkpoint, error) {
	return e.store.ListCheckpoints(ctx, artifactID)
}

// EvaluateDueCheckpoints evaluates every open artifact that has passed the
// midpoint of its ship window and has no checkpoint yet.
func (e *Engine) EvaluateDueCheckpoints(ctx context.Context) ([]model.Checkpoint, error) {
	open, err := e.store.ListOpenArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Checkpoint
	now := e.now()
	for i := range open {
		if !model.CheckpointDue(&open[i], now) {
			continue
		}
		existing, err := e.store.ListCheckpoints(ctx, open[i].ID)
		if err != nil {
			return out, err
		}
		if len(existing) > 0 {
			continue
		}
		cp, err := e.EvaluateCheckpoint(ctx, open[i].ID)
		if err != nil {
			e.log.Error("checkpoint failed", "artifact_id", open[i].ID, "error", err)
			continue
		}
		out = append(out, *cp)
	}
	return out, nil
}
