package engine

import (
	"context"
	"errors"

	"github.com/yangwenmai/force/internal/model"
	"github.com/yangwenmai/force/internal/store"
)

// ActiveArtifact returns the single active artifact, or nil.
func (e *Engine) ActiveArtifact(ctx context.Context) (*model.Artifact, error) {
	return e.store.GetActiveArtifact(ctx)
}

// Artifact returns one artifact by id.
func (e *Engine) Artifact(ctx context.Context, id string) (*model.Artifact, error) {
	return e.store.GetArtifact(ctx, id)
}

// Artifacts returns every artifact, newest first.
func (e *Engine) Artifacts(ctx context.Context) ([]model.Artifact, error) {
	return e.store.ListArtifacts(ctx)
}

// CreateArtifact validates in, archives the current active artifact if any,
// and inserts a new active one. A rejected input archives nothing.
func (e *Engine) CreateArtifact(ctx context.Context, in model.NewArtifactInput) (*model.Artifact, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	a := model.NewArtifact(e.newID(), in, now)
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		prev, err := q.GetActiveArtifact(ctx)
		if err != nil {
			return err
		}
		if prev != nil {
			if err := e.archive(ctx, q, prev); err != nil {
				return err
			}
			e.log.Info("artifact superseded", "artifact_id", prev.ID, "by", a.ID)
		}
		return q.InsertArtifact(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("artifact created", "artifact_id", a.ID, "name", a.Name, "ship_date", a.ShipDate)
	return &a, nil
}

// UpdateContent replaces the content of the active artifact under the scope
// lock. Nothing is written when the edit is rejected.
func (e *Engine) UpdateContent(ctx context.Context, id, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, id)
		if errors.Is(err, model.ErrArtifactNotFound) {
			return model.ErrNotActiveArtifact
		}
		if err != nil {
			return err
		}
		status, version := a.Status, a.Version
		if err := a.SetContent(content); err != nil {
			return err
		}
		return q.UpdateArtifact(ctx, a, status, version)
	})
}

// MarkDoneCriteriaMet locks the active artifact. There is no way back.
func (e *Engine) MarkDoneCriteriaMet(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, id)
		if errors.Is(err, model.ErrArtifactNotFound) {
			return model.ErrNotActiveArtifact
		}
		if err != nil {
			return err
		}
		if a.Status != model.StatusActive {
			return model.ErrNotActiveArtifact
		}
		status, version := a.Status, a.Version
		if err := a.Lock(); err != nil {
			return err
		}
		return q.UpdateArtifact(ctx, a, status, version)
	})
	if err != nil {
		return err
	}
	e.log.Info("edit lock activated", "artifact_id", id)
	return nil
}

// SubmitShippingProof records proof of external delivery for any artifact.
func (e *Engine) SubmitShippingProof(ctx context.Context, id, proofURL string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		status, version := a.Status, a.Version
		a.SubmitProof(proofURL)
		return q.UpdateArtifact(ctx, a, status, version)
	})
}

// Ship passes the artifact through the external reality gate. Whether it was
// on time is derived from the returned record.
func (e *Engine) Ship(ctx context.Context, id string) (*model.Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var shipped *model.Artifact
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		status, version := a.Status, a.Version
		now := e.now()
		if err := a.Ship(now); err != nil {
			return err
		}
		if err := q.UpdateArtifact(ctx, a, status, version); err != nil {
			return err
		}
		shipped = a
		return q.AppendEvent(ctx, model.Event{
			Kind:       model.EventArtifactShipped,
			ArtifactID: a.ID,
			Positive:   a.OnTime(),
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("artifact shipped", "artifact_id", id, "on_time", shipped.OnTime())
	return shipped, nil
}

// Archive abandons an active or locked artifact.
func (e *Engine) Archive(ctx context.Context, id string) (*model.Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var archived *model.Artifact
	err := e.store.InTx(ctx, func(q *store.Queries) error {
		a, err := q.GetArtifact(ctx, id)
		if err != nil {
			return err
		}
		if err := e.archive(ctx, q, a); err != nil {
			return err
		}
		archived = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("artifact archived", "artifact_id", id)
	return archived, nil
}

// archive transitions a to archived and counts it as a failed artifact.
func (e *Engine) archive(ctx context.Context, q *store.Queries, a *model.Artifact) error {
	status, version := a.Status, a.Version
	if err := a.Archive(); err != nil {
		return err
	}
	if err := q.UpdateArtifact(ctx, a, status, version); err != nil {
		return err
	}
	return q.AppendEvent(ctx, model.Event{
		Kind:       model.EventArtifactAbandoned,
		ArtifactID: a.ID,
		OccurredAt: e.now(),
	})
}
