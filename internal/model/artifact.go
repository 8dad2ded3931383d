package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an Artifact.
type Status string

// Artifact status constants
const (
	StatusActive   Status = "active"
	StatusLocked   Status = "locked"
	StatusShipped  Status = "shipped"
	StatusArchived Status = "archived"
)

// Scope limits applied at creation.
const (
	MaxShipDays     = 7
	MaxDoneCriteria = 5
)

// transitions lists the legal status changes. Shipped and archived are terminal.
var transitions = map[Status][]Status{
	StatusActive: {StatusLocked, StatusArchived, StatusShipped},
	StatusLocked: {StatusArchived, StatusShipped},
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Artifact is the single deliverable under governance.
type Artifact struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Content           string     `json:"content"`
	ShipDate          time.Time  `json:"ship_date"`
	CreatedAt         time.Time  `json:"created_at"`
	Status            Status     `json:"status"`
	ShippedAt         *time.Time `json:"shipped_at"`
	Version           int        `json:"version"`
	DoneCriteria      []string   `json:"done_criteria"`
	ExternalRecipient string     `json:"external_recipient"`
	MaxWordCount      int        `json:"max_word_count"`
	CurrentWordCount  int        `json:"current_word_count"`
	DoneCriteriaMet   bool       `json:"done_criteria_met"`
	EditLocked        bool       `json:"edit_locked"`
	ShippingProofURL  *string    `json:"shipping_proof_url"`
	ProofSubmitted    bool       `json:"shipping_proof_submitted"`
}

// NewArtifactInput holds the immutable-at-creation fields of an artifact.
type NewArtifactInput struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	ShipDays          int      `json:"ship_days"`
	DoneCriteria      []string `json:"done_criteria"`
	ExternalRecipient string   `json:"external_recipient"`
	MaxWordCount      int      `json:"max_word_count"`
}

// Validate checks the scope limits of a new artifact. Each violation is a
// distinct validation error.
func (in NewArtifactInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if in.ShipDays > MaxShipDays {
		return fmt.Errorf("%w: ship date cannot exceed %d days, got %d", ErrShipWindowExceeded, MaxShipDays, in.ShipDays)
	}
	if in.ShipDays < 1 {
		return ErrShipWindowTooShort
	}
	if len(in.DoneCriteria) > MaxDoneCriteria {
		return fmt.Errorf("%w: definition of done cannot exceed %d bullets, got %d", ErrDoneCriteriaLimit, MaxDoneCriteria, len(in.DoneCriteria))
	}
	if len(in.DoneCriteria) == 0 {
		return ErrDoneCriteriaRequired
	}
	if in.MaxWordCount < 1 {
		return ErrInvalidWordLimit
	}
	return nil
}

// NewArtifact creates an active artifact with empty content. The input is
// assumed to be validated.
func NewArtifact(id string, in NewArtifactInput, now time.Time) Artifact {
	criteria := make([]string, len(in.DoneCriteria))
	copy(criteria, in.DoneCriteria)
	return Artifact{
		ID:                id,
		Name:              in.Name,
		Type:              in.Type,
		ShipDate:          now.Add(time.Duration(in.ShipDays) * 24 * time.Hour),
		CreatedAt:         now,
		Status:            StatusActive,
		Version:           1,
		DoneCriteria:      criteria,
		ExternalRecipient: in.ExternalRecipient,
		MaxWordCount:      in.MaxWordCount,
	}
}

// ValidateTransition checks whether moving from the current status to the
// target is allowed.
func (a *Artifact) ValidateTransition(to Status) error {
	for _, s := range transitions[a.Status] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.Status, to)
}

// SetContent applies an edit under the scope and edit locks. On error the
// artifact is left untouched.
func (a *Artifact) SetContent(content string) error {
	if a.EditLocked {
		return ErrEditLocked
	}
	if a.Status != StatusActive {
		return ErrNotActiveArtifact
	}
	n := CountWords(content)
	if n > a.MaxWordCount {
		return fmt.Errorf("%w: max %d words, current %d; delete content to proceed", ErrScopeExceeded, a.MaxWordCount, n)
	}
	a.Content = content
	a.CurrentWordCount = n
	a.Version++
	return nil
}

// Lock marks the done criteria met and freezes the content for good.
func (a *Artifact) Lock() error {
	if err := a.ValidateTransition(StatusLocked); err != nil {
		return err
	}
	a.Status = StatusLocked
	a.DoneCriteriaMet = true
	a.EditLocked = true
	return nil
}

// SubmitProof records proof of external delivery. It does not depend on status.
func (a *Artifact) SubmitProof(url string) {
	a.ShippingProofURL = &url
	a.ProofSubmitted = true
}

// Ship moves the artifact to shipped. The external reality gate must be passed.
func (a *Artifact) Ship(now time.Time) error {
	if !a.ProofSubmitted {
		return ErrRealityGateNotPassed
	}
	if err := a.ValidateTransition(StatusShipped); err != nil {
		return err
	}
	a.Status = StatusShipped
	a.ShippedAt = &now
	a.EditLocked = true
	return nil
}

// Archive retires the artifact without shipping it.
func (a *Artifact) Archive() error {
	if err := a.ValidateTransition(StatusArchived); err != nil {
		return err
	}
	a.Status = StatusArchived
	return nil
}

// OnTime reports whether the artifact shipped no later than its ship date.
func (a *Artifact) OnTime() bool {
	return a.ShippedAt != nil && !a.ShippedAt.After(a.ShipDate)
}

// CountWords counts whitespace-separated tokens.
func CountWords(content string) int {
	return len(strings.Fields(content))
}
