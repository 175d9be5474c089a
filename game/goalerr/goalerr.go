// Package goalerr is the error taxonomy of the progression engine.
package goalerr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies a failure.
type Kind string

const (
	NotFound                 Kind = "not_found"
	InvalidState             Kind = "invalid_state"
	PrerequisiteNotMet       Kind = "prerequisite_not_met"
	InvalidChoice            Kind = "invalid_choice"
	DuplicateActive          Kind = "duplicate_active"
	StorageFailure           Kind = "storage_failure"
	RewardApplicationFailure Kind = "reward_application_failure"
	InvalidInput             Kind = "invalid_input"
)

// Codes carried by InvalidState and PrerequisiteNotMet errors.
const (
	CodeNotCompleted     = "not_completed"
	CodeAlreadyRewarded  = "already_rewarded"
	CodeNoPendingBranch  = "no_pending_branch"
	CodeAlreadyCompleted = "already_completed"
	CodeExpired          = "expired"
	CodeUnclaimedQuest   = "unclaimed_quest"

	CodeLevel      = "level"
	CodeSkill      = "skill"
	CodePriorChain = "prior_chain"
	CodePriorQuest = "prior_quest"
)

// Error is a typed engine error. Details name the failed precondition.
type Error struct {
	Kind    Kind
	Code    string
	Msg     string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString("(" + e.Code + ")")
	}
	if e.Msg != "" {
		b.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, and by code when the target has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrNotCompleted      = &Error{Kind: InvalidState, Code: CodeNotCompleted}
	ErrAlreadyRewarded   = &Error{Kind: InvalidState, Code: CodeAlreadyRewarded}
	ErrNoPendingBranch   = &Error{Kind: InvalidState, Code: CodeNoPendingBranch}
	ErrAlreadyCompleted  = &Error{Kind: InvalidState, Code: CodeAlreadyCompleted}
	ErrExpired           = &Error{Kind: InvalidState, Code: CodeExpired}
	ErrUnclaimedQuest    = &Error{Kind: InvalidState, Code: CodeUnclaimedQuest}
	ErrDuplicateActive   = &Error{Kind: DuplicateActive}
	ErrPrerequisite      = &Error{Kind: PrerequisiteNotMet}
	ErrInvalidChoice     = &Error{Kind: InvalidChoice}
	ErrStorage           = &Error{Kind: StorageFailure}
	ErrRewardApplication = &Error{Kind: RewardApplicationFailure}
	ErrInvalidInput      = &Error{Kind: InvalidInput}
)

// New returns a bare error of the given kind and code.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// With attaches a detail and returns e.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NotFoundf reports a missing player, definition or record.
func NotFoundf(what, id string) *Error {
	return (&Error{Kind: NotFound, Code: what, Msg: what + " " + id + " not found"}).With("id", id)
}

// Storage wraps a persistence failure. gorm.ErrRecordNotFound must be
// translated by the caller before reaching here.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Kind: StorageFailure, Msg: op, Err: err}
}

// Reward wraps a failure of the reward applier.
func Reward(err error) error {
	var ge *Error
	if errors.As(err, &ge) && ge.Kind == RewardApplicationFailure {
		return err
	}
	return &Error{Kind: RewardApplicationFailure, Msg: "apply reward", Err: err}
}

// IsRecordNotFound reports whether err is gorm's missing-row error.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// KindOf returns the kind of err, or StorageFailure for untyped errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return StorageFailure
}

// Retryable reports whether the same call may succeed if repeated.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == StorageFailure
}
