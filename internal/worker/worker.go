// Package worker runs the background jobs of the enforcement engine.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

// Enforcer is the part of the engine the sweeper drives.
type Enforcer interface {
	SweepExpired(ctx context.Context, currentContent *string) ([]model.Block, error)
	EvaluateDueCheckpoints(ctx context.Context) ([]model.Checkpoint, error)
}

// Sweeper periodically force-ends expired blocks and evaluates due checkpoints.
type Sweeper struct {
	enforcer Enforcer
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper creates a new Sweeper. A nil logger uses slog.Default.
func NewSweeper(enforcer Enforcer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{enforcer: enforcer, interval: interval, log: logger}
}

// Start begins the polling loop. It blocks until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	w.log.Info("sweeper started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return
		default:
		}

		w.Tick(ctx)
		w.sleep(ctx)
	}
}

// Tick runs one sweep and one checkpoint pass. Errors are logged, never returned.
func (w *Sweeper) Tick(ctx context.Context) {
	ended, err := w.enforcer.SweepExpired(ctx, nil)
	if err != nil {
		w.log.Error("sweep failed", "error", err)
	} else if len(ended) > 0 {
		w.log.Info("expired blocks ended", "count", len(ended))
	}

	checkpoints, err := w.enforcer.EvaluateDueCheckpoints(ctx)
	if err != nil {
		w.log.Error("checkpoint pass failed", "error", err)
	}
	for _, cp := range checkpoints {
		if !cp.Passed {
			w.log.Warn("checkpoint missed", "artifact_id", cp.ArtifactID,
				"actual_pct", cp.ActualCompletionPct, "required_pct", cp.RequiredCompletionPct)
		}
	}
}

func (w *Sweeper) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
