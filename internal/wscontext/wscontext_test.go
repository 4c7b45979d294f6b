package wscontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithAndFrom(t *testing.T) {
	t.Run("round_trips_a_populated_scope", func(t *testing.T) {
		want := Scope{WorkspaceID: "ws-1", UserID: "user-1"}
		ctx := With(context.Background(), want)

		got, ok := From(ctx)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("reports_absent_when_never_attached", func(t *testing.T) {
		_, ok := From(context.Background())
		assert.False(t, ok)
	})
}

func TestScopeEmpty(t *testing.T) {
	t.Run("empty_when_either_field_is_missing", func(t *testing.T) {
		assert.True(t, Scope{}.Empty())
		assert.True(t, Scope{WorkspaceID: "ws-1"}.Empty())
		assert.True(t, Scope{UserID: "user-1"}.Empty())
	})

	t.Run("not_empty_once_both_fields_are_set", func(t *testing.T) {
		assert.False(t, Scope{WorkspaceID: "ws-1", UserID: "user-1"}.Empty())
	})
}

func TestMustFrom(t *testing.T) {
	t.Run("never_panics_when_absent", func(t *testing.T) {
		assert.True(t, MustFrom(context.Background()).Empty())
	})

	t.Run("returns_the_attached_scope", func(t *testing.T) {
		ctx := With(context.Background(), Scope{WorkspaceID: "ws-1", UserID: "user-1"})
		assert.False(t, MustFrom(ctx).Empty())
	})
}
