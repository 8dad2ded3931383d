package store

import (
	"context"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

// ArtifactReader provides read access to artifacts.
type ArtifactReader interface {
	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	GetActiveArtifact(ctx context.Context) (*model.Artifact, error)
	ListArtifacts(ctx context.Context) ([]model.Artifact, error)
}

// BlockReader provides read access to blocks.
type BlockReader interface {
	GetBlock(ctx context.Context, id string) (*model.Block, error)
	GetAnyRunningBlock(ctx context.Context) (*model.Block, error)
	ListBlocks(ctx context.Context, artifactID string) ([]model.Block, error)
	BlockStats(ctx context.Context, artifactID string) (model.BlockStats, error)
}

// JournalReader provides read access to the append-only failure and reflection log.
type JournalReader interface {
	ListAutopsies(ctx context.Context, artifactID string) ([]model.Autopsy, error)
	ListSkippedBlocks(ctx context.Context, artifactID string) ([]model.SkippedBlock, error)
	ListCheckpoints(ctx context.Context, artifactID string) ([]model.Checkpoint, error)
}

// EventReader provides read access to the reliability event log.
type EventReader interface {
	ListEvents(ctx context.Context, since time.Time) ([]model.Event, error)
}

// Reader combines every read-only operation, for inspection tools.
type Reader interface {
	ArtifactReader
	BlockReader
	JournalReader
	EventReader
}
