package engine

import (
	"context"
	"time"

	"github.com/yangwenmai/force/internal/model"
	"github.com/yangwenmai/force/internal/store"
)

// Store is the durable store the engine enforces against. Reads outside a
// transaction go through the embedded Reader; every write goes through InTx.
type Store interface {
	store.Reader
	ListOpenArtifacts(ctx context.Context) ([]model.Artifact, error)
	ListRunningBlocksStartedBefore(ctx context.Context, cutoff time.Time) ([]model.Block, error)
	InTx(ctx context.Context, fn func(q *store.Queries) error) error
}

var _ Store = (*store.Store)(nil)
