// Package engine enforces the artifact lifecycle and block execution rules.
//
// Every mutating operation holds the engine mutex and runs inside a single
// store transaction, so a rejected operation leaves the store untouched and
// concurrent callers cannot both observe the same pre-state.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/force/internal/model"
)

// DefaultCheckpointPct is the share of the word budget expected at the checkpoint.
const DefaultCheckpointPct = 50

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Now supplies wall-clock time. Defaults to time.Now.
	Now func() time.Time

	// NewID generates opaque unique identifiers. Defaults to uuid.NewString.
	NewID func() string

	// Location is the zone whose Sunday midnight starts a reliability week.
	Location *time.Location

	// BlockDuration is how long a block may run before the sweep ends it.
	BlockDuration time.Duration

	// CheckpointPct is the completion percentage a checkpoint requires.
	CheckpointPct float64

	Logger *slog.Logger
}

// Engine is the Artifact Lifecycle Manager, Block Execution Engine, failure
// log and reliability aggregator over one store.
type Engine struct {
	store Store
	mu    sync.Mutex

	now           func() time.Time
	newID         func() string
	loc           *time.Location
	blockDuration time.Duration
	checkpointPct float64
	log           *slog.Logger
}

// New creates an engine over s.
func New(s Store, opts Options) *Engine {
	e := &Engine{
		store:         s,
		now:           opts.Now,
		newID:         opts.NewID,
		loc:           opts.Location,
		blockDuration: opts.BlockDuration,
		checkpointPct: opts.CheckpointPct,
		log:           opts.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.blockDuration <= 0 {
		e.blockDuration = model.BlockDuration
	}
	if e.checkpointPct <= 0 {
		e.checkpointPct = DefaultCheckpointPct
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// Location returns the zone used for week bucketing.
func (e *Engine) Location() *time.Location {
	return e.loc
}
