package model

import "time"

// DefaultSkipReason is recorded when a skipped block carries no reason.
const DefaultSkipReason = "No reason provided"

// AutopsyAnswers are the five yes/no post-ship questions.
type AutopsyAnswers struct {
	ShippedOnTime            bool `json:"shipped_on_time"`
	ScopeRespected           bool `json:"scope_respected"`
	ExternalFeedbackReceived bool `json:"external_feedback_received"`
	OneClearTakeaway         bool `json:"one_clear_takeaway"`
	RepeatArtifactClass      bool `json:"repeat_artifact_class"`
}

// Autopsy is a permanent post-ship reflection. It is never updated.
type Autopsy struct {
	ID         string    `json:"id"`
	ArtifactID string    `json:"artifact_id"`
	CreatedAt  time.Time `json:"created_at"`
	AutopsyAnswers
}

// NewAutopsy creates an autopsy record.
func NewAutopsy(id, artifactID string, answers AutopsyAnswers, now time.Time) Autopsy {
	return Autopsy{ID: id, ArtifactID: artifactID, CreatedAt: now, AutopsyAnswers: answers}
}

// SkippedBlock is a permanent record of a block that was scheduled but not run.
type SkippedBlock struct {
	ID            string    `json:"id"`
	ArtifactID    string    `json:"artifact_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	SkippedAt     time.Time `json:"skipped_at"`
	Reason        string    `json:"reason"`
}

// NewSkippedBlock creates a skipped block record, defaulting an empty reason.
func NewSkippedBlock(id, artifactID string, scheduled time.Time, reason string, now time.Time) SkippedBlock {
	if reason == "" {
		reason = DefaultSkipReason
	}
	return SkippedBlock{
		ID:            id,
		ArtifactID:    artifactID,
		ScheduledTime: scheduled,
		SkippedAt:     now,
		Reason:        reason,
	}
}

// Checkpoint is a progress gate evaluated partway through the ship window.
type Checkpoint struct {
	ID                    string    `json:"id"`
	ArtifactID            string    `json:"artifact_id"`
	CheckpointDate        time.Time `json:"checkpoint_date"`
	RequiredCompletionPct float64   `json:"required_completion_pct"`
	ActualCompletionPct   float64   `json:"actual_completion_pct"`
	Passed                bool      `json:"passed"`
	ScopeReductionApplied bool      `json:"scope_reduction_applied"`
}

// EvaluateCheckpoint measures progress of a as the share of its word budget
// used, or 100 once the content is locked.
func EvaluateCheckpoint(id string, a *Artifact, requiredPct float64, now time.Time) Checkpoint {
	actual := 100.0
	if !a.EditLocked && a.MaxWordCount > 0 {
		actual = 100 * float64(a.CurrentWordCount) / float64(a.MaxWordCount)
	}
	return Checkpoint{
		ID:                    id,
		ArtifactID:            a.ID,
		CheckpointDate:        now,
		RequiredCompletionPct: requiredPct,
		ActualCompletionPct:   actual,
		Passed:                actual >= requiredPct,
	}
}

// CheckpointDue reports whether an open artifact has passed the midpoint of
// its ship window.
func CheckpointDue(a *Artifact, now time.Time) bool {
	if a.Status != StatusActive && a.Status != StatusLocked {
		return false
	}
	mid := a.CreatedAt.Add(a.ShipDate.Sub(a.CreatedAt) / 2)
	return !now.Before(mid)
}
