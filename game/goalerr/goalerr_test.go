package goalerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIs_KindAndCode(t *testing.T) {
	err := New(InvalidState, CodeNotCompleted, "quest %s", "q1")
	assert.ErrorIs(t, err, ErrNotCompleted)
	assert.NotErrorIs(t, err, ErrAlreadyRewarded)
	assert.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("claim: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotCompleted)
	assert.ErrorIs(t, wrapped, &Error{Kind: InvalidState})
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("quest", "q9")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "q9", err.Details["id"])
	assert.Contains(t, err.Error(), "q9")
}

func TestStorage(t *testing.T) {
	assert.NoError(t, Storage("op", nil))

	cause := errors.New("disk full")
	err := Storage("save quest", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))

	typed := NotFoundf("player", "1")
	assert.Same(t, typed, Storage("load", typed), "typed errors pass through")
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(ErrAlreadyRewarded))
	assert.False(t, Retryable(Reward(errors.New("inventory full"))))
	assert.True(t, Retryable(errors.New("untyped")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, PrerequisiteNotMet, KindOf(New(PrerequisiteNotMet, CodeLevel, "")))
	assert.Equal(t, RewardApplicationFailure, KindOf(Reward(errors.New("x"))))
	assert.True(t, IsRecordNotFound(fmt.Errorf("x: %w", gorm.ErrRecordNotFound)))
}
