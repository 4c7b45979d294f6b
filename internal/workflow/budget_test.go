package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBudgetTracker(t *testing.T) {
	t.Run("falls_back_to_default_when_nil", func(t *testing.T) {
		b := NewBudgetTracker(nil)
		assert.Equal(t, DefaultBudgetUSD, b.Limit)
	})

	t.Run("falls_back_to_default_when_non_positive", func(t *testing.T) {
		zero := 0.0
		b := NewBudgetTracker(&zero)
		assert.Equal(t, DefaultBudgetUSD, b.Limit)
	})

	t.Run("uses_the_provided_limit", func(t *testing.T) {
		limit := 25.0
		b := NewBudgetTracker(&limit)
		assert.Equal(t, 25.0, b.Limit)
	})
}

func TestBudgetTrackerAccounting(t *testing.T) {
	limit := 10.0
	b := NewBudgetTracker(&limit)

	b.Add(3)
	assert.Equal(t, 3.0, b.Spent())
	assert.Equal(t, 7.0, b.Remaining())
	assert.False(t, b.IsExceeded())

	b.Add(7)
	assert.True(t, b.IsExceeded())
	assert.Equal(t, 0.0, b.Remaining())
}

func TestBudgetTrackerWarnThreshold(t *testing.T) {
	t.Run("fires_once_when_crossed", func(t *testing.T) {
		limit := 10.0
		b := NewBudgetTracker(&limit)

		b.Add(5)
		assert.False(t, b.CrossedWarnThreshold())

		b.Add(4)
		assert.True(t, b.CrossedWarnThreshold())
		assert.False(t, b.CrossedWarnThreshold(), "must not re-fire on a later call")
	})

	t.Run("never_fires_below_the_threshold", func(t *testing.T) {
		limit := 10.0
		b := NewBudgetTracker(&limit)
		b.Add(1)
		assert.False(t, b.CrossedWarnThreshold())
	})
}
