package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yangwenmai/force/internal/model"
)

const artifactColumns = `id, name, type, content, ship_date, created_at, status, shipped_at, version,
	done_criteria, external_recipient, max_word_count, current_word_count,
	done_criteria_met, edit_locked, shipping_proof_url, shipping_proof_submitted`

// InsertArtifact stores a new artifact. Inserting a second active artifact
// fails with model.ErrNotActiveArtifact.
func (q *Queries) InsertArtifact(ctx context.Context, a model.Artifact) error {
	criteria, err := json.Marshal(a.DoneCriteria)
	if err != nil {
		return fmt.Errorf("marshal done criteria: %w", err)
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Type, a.Content, toMillis(a.ShipDate), toMillis(a.CreatedAt),
		a.Status, nullableMillis(a.ShippedAt), a.Version, string(criteria),
		a.ExternalRecipient, a.MaxWordCount, a.CurrentWordCount,
		boolInt(a.DoneCriteriaMet), boolInt(a.EditLocked), a.ShippingProofURL, boolInt(a.ProofSubmitted),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: another artifact is already active", model.ErrNotActiveArtifact)
	}
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// GetArtifact returns the artifact with the given id or model.ErrArtifactNotFound.
func (q *Queries) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return a, nil
}

// GetActiveArtifact returns the active artifact, or nil if there is none.
func (q *Queries) GetActiveArtifact(ctx context.Context) (*model.Artifact, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE status = ?`, model.StatusActive)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns every artifact, newest first.
func (q *Queries) ListArtifacts(ctx context.Context) ([]model.Artifact, error) {
	return q.listArtifacts(ctx, `SELECT `+artifactColumns+` FROM artifacts ORDER BY created_at DESC, rowid DESC`)
}

// ListOpenArtifacts returns active and locked artifacts, oldest first.
func (q *Queries) ListOpenArtifacts(ctx context.Context) ([]model.Artifact, error) {
	return q.listArtifacts(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE status IN (?, ?) ORDER BY created_at ASC`,
		model.StatusActive, model.StatusLocked)
}

func (q *Queries) listArtifacts(ctx context.Context, query string, args ...any) ([]model.Artifact, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// UpdateArtifact persists every mutable field of a, provided the stored row
// still has the expected status and version. A lost race reports
// model.ErrIllegalTransition and writes nothing.
func (q *Queries) UpdateArtifact(ctx context.Context, a *model.Artifact, expectStatus model.Status, expectVersion int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE artifacts
		SET content = ?, current_word_count = ?, status = ?, shipped_at = ?, version = ?,
			done_criteria_met = ?, edit_locked = ?, shipping_proof_url = ?, shipping_proof_submitted = ?
		WHERE id = ? AND status = ? AND version = ?`,
		a.Content, a.CurrentWordCount, a.Status, nullableMillis(a.ShippedAt), a.Version,
		boolInt(a.DoneCriteriaMet), boolInt(a.EditLocked), a.ShippingProofURL, boolInt(a.ProofSubmitted),
		a.ID, expectStatus, expectVersion,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: another artifact is already active", model.ErrNotActiveArtifact)
	}
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update artifact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: artifact %s changed concurrently", model.ErrIllegalTransition, a.ID)
	}
	return nil
}

func scanArtifact(row scanner) (*model.Artifact, error) {
	var (
		a                           model.Artifact
		shipDate, createdAt         int64
		shippedAt                   sql.NullInt64
		criteria                    string
		met, locked, proofSubmitted int
		proofURL                    sql.NullString
	)
	err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Content, &shipDate, &createdAt, &a.Status, &shippedAt,
		&a.Version, &criteria, &a.ExternalRecipient, &a.MaxWordCount, &a.CurrentWordCount,
		&met, &locked, &proofURL, &proofSubmitted)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(criteria), &a.DoneCriteria); err != nil {
		return nil, fmt.Errorf("decode done criteria of %s: %w", a.ID, err)
	}
	a.ShipDate = fromMillis(shipDate)
	a.CreatedAt = fromMillis(createdAt)
	a.ShippedAt = timePtr(shippedAt)
	a.DoneCriteriaMet = met == 1
	a.EditLocked = locked == 1
	a.ShippingProofURL = stringPtr(proofURL)
	a.ProofSubmitted = proofSubmitted == 1
	return &a, nil
}
