package webhook

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/trigger"
)

type fakeLookup struct {
	trig    *trigger.Trigger
	lookErr error
	execErr error
	exec    *trigger.TriggerExecution
}

func (f *fakeLookup) GetByWebhookID(_ context.Context, _ string) (*trigger.Trigger, error) {
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	return f.trig, nil
}

func (f *fakeLookup) ExecuteTrigger(_ context.Context, triggerID string, _ map[string]any) (*trigger.TriggerExecution, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.exec != nil {
		return f.exec, nil
	}
	return &trigger.TriggerExecution{ID: "exec-1", TriggerID: triggerID}, nil
}

func activeTrigger() *trigger.Trigger {
	return &trigger.Trigger{
		ID:             "trig-1",
		IsActive:       true,
		AllowedMethods: []string{"POST"},
	}
}

func TestRouterHandle(t *testing.T) {
	log := telemetry.NewNoopLogger()

	t.Run("returns_404_when_the_webhook_id_is_unknown", func(t *testing.T) {
		r := NewRouter(&fakeLookup{lookErr: apperr.New(apperr.NotFound, "no such webhook")}, log)
		result := r.Handle(context.Background(), "ghost", Request{Method: http.MethodPost})
		assert.Equal(t, http.StatusNotFound, result.Status)
	})

	t.Run("returns_500_on_an_unexpected_lookup_error", func(t *testing.T) {
		r := NewRouter(&fakeLookup{lookErr: apperr.New(apperr.DependencyUnavailable, "db down")}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodPost})
		assert.Equal(t, http.StatusInternalServerError, result.Status)
	})

	t.Run("returns_400_for_an_inactive_trigger", func(t *testing.T) {
		trig := activeTrigger()
		trig.IsActive = false
		r := NewRouter(&fakeLookup{trig: trig}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodPost})
		assert.Equal(t, http.StatusBadRequest, result.Status)
	})

	t.Run("returns_405_for_a_disallowed_method", func(t *testing.T) {
		r := NewRouter(&fakeLookup{trig: activeTrigger()}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodGet})
		assert.Equal(t, http.StatusMethodNotAllowed, result.Status)
	})

	t.Run("returns_400_when_validation_rules_fail", func(t *testing.T) {
		trig := activeTrigger()
		trig.ValidationRules = map[string]any{"body_format": "json"}
		r := NewRouter(&fakeLookup{trig: trig}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodPost, Body: []byte("not json")})
		assert.Equal(t, http.StatusBadRequest, result.Status)
	})

	t.Run("returns_200_and_executes_the_trigger_on_success", func(t *testing.T) {
		r := NewRouter(&fakeLookup{trig: activeTrigger()}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodPost, Body: []byte(`{}`)})
		require.Equal(t, http.StatusOK, result.Status)
		assert.Equal(t, "exec-1", result.Body["execution_id"])
	})

	t.Run("returns_500_when_trigger_execution_fails", func(t *testing.T) {
		r := NewRouter(&fakeLookup{trig: activeTrigger(), execErr: apperr.New(apperr.DependencyUnavailable, "boom")}, log)
		result := r.Handle(context.Background(), "wh-1", Request{Method: http.MethodPost})
		assert.Equal(t, http.StatusInternalServerError, result.Status)
	})
}

func TestValidateJSONSchemaRule(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	t.Run("passes_a_conforming_body", func(t *testing.T) {
		err := validate(Request{Body: []byte(`{"name":"agentcore"}`)}, map[string]any{"json_schema": schema})
		assert.NoError(t, err)
	})

	t.Run("fails_a_body_missing_a_required_field", func(t *testing.T) {
		err := validate(Request{Body: []byte(`{}`)}, map[string]any{"json_schema": schema})
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("fails_non_json_body", func(t *testing.T) {
		err := validate(Request{Body: []byte(`not json`)}, map[string]any{"json_schema": schema})
		assert.True(t, apperr.Is(err, apperr.Validation))
	})
}

func TestRequiredHeadersRule(t *testing.T) {
	rules := map[string]any{"required_headers": []any{"X-Signature"}}

	t.Run("fails_when_the_header_is_absent", func(t *testing.T) {
		err := validate(Request{Headers: http.Header{}}, rules)
		assert.True(t, apperr.Is(err, apperr.Validation))
	})

	t.Run("passes_when_the_header_is_present", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-Signature", "abc")
		assert.NoError(t, validate(Request{Headers: h}, rules))
	})
}
