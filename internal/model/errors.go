package model

import "errors"

// Kind classifies enforcement failures by what the caller must change.
type Kind int

const (
	// KindInternal covers infrastructure failures that are not rule violations.
	KindInternal Kind = iota
	// KindValidation means the input must shrink or be corrected.
	KindValidation
	// KindStateConflict means the caller is operating on the wrong thing.
	KindStateConflict
	// KindGate means a prerequisite step has not been completed.
	KindGate
	// KindNotFound means an unknown identifier.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindGate:
		return "gate"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a rule violation reported synchronously to the operator.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return "BLOCKED: " + e.Message
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation errors.
var (
	ErrNameRequired         = newError(KindValidation, "name_required", "artifact name is required")
	ErrShipWindowExceeded   = newError(KindValidation, "ship_window_exceeded", "ship window exceeded")
	ErrShipWindowTooShort   = newError(KindValidation, "ship_window_too_short", "ship window must be at least 1 day")
	ErrDoneCriteriaLimit    = newError(KindValidation, "done_criteria_limit_exceeded", "done-criteria limit exceeded")
	ErrDoneCriteriaRequired = newError(KindValidation, "done_criteria_required", "at least one done criterion is required")
	ErrInvalidWordLimit     = newError(KindValidation, "invalid_word_limit", "max word count must be positive")
	ErrScopeExceeded        = newError(KindValidation, "scope_exceeded", "scope lock exceeded")
	ErrInvalidDiffType      = newError(KindValidation, "invalid_diff_type", "expected diff type must be paragraph, section, slide, figure or commit")
)

// State conflict errors.
var (
	ErrNotActiveArtifact   = newError(KindStateConflict, "not_active_artifact", "can only update the active artifact")
	ErrEditLocked          = newError(KindStateConflict, "edit_locked", "edit lock active; artifact is done, ship or archive only")
	ErrBlockAlreadyRunning = newError(KindStateConflict, "block_already_running", "a block is already running; complete it first")
	ErrBlockNotRunning     = newError(KindStateConflict, "block_not_running", "block is not running")
	ErrIllegalTransition   = newError(KindStateConflict, "illegal_transition", "illegal status transition")
)

// Gate errors.
var (
	ErrRealityGateNotPassed = newError(KindGate, "reality_gate_not_passed",
		"external reality gate not passed; submit proof of external shipping (URL, screenshot, email confirmation)")
)

// Not found errors.
var (
	ErrArtifactNotFound = newError(KindNotFound, "artifact_not_found", "artifact not found")
	ErrBlockNotFound    = newError(KindNotFound, "block_not_found", "block not found")
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
