package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs(t *testing.T) {
	t.Run("matches_the_wrapped_kind", func(t *testing.T) {
		err := New(NotFound, "trigger not found")
		assert.True(t, Is(err, NotFound))
		assert.False(t, Is(err, Validation))
	})

	t.Run("matches_only_the_outermost_kind_in_a_chain", func(t *testing.T) {
		inner := New(DependencyUnavailable, "db down")
		outer := Wrap(TriggerExecution, "create trigger failed", inner)
		assert.True(t, Is(outer, TriggerExecution))
		assert.False(t, Is(outer, DependencyUnavailable))
	})

	t.Run("false_for_a_plain_error", func(t *testing.T) {
		assert.False(t, Is(errors.New("plain"), NotFound))
	})
}

func TestKindOf(t *testing.T) {
	t.Run("returns_empty_for_non_apperr", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	})

	t.Run("returns_the_kind_for_apperr", func(t *testing.T) {
		assert.Equal(t, BudgetExceeded, KindOf(New(BudgetExceeded, "over budget")))
	})
}

func TestErrorMessage(t *testing.T) {
	t.Run("includes_cause_when_present", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(DependencyUnavailable, "dial postgres", cause)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Contains(t, err.Error(), "dial postgres")
	})

	t.Run("omits_cause_when_absent", func(t *testing.T) {
		err := New(Validation, "agent_id required")
		assert.Equal(t, "validation: agent_id required", err.Error())
	})

	t.Run("unwraps_to_the_cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := Wrap(Timeout, "activity timed out", cause)
		assert.ErrorIs(t, err, cause)
	})
}
