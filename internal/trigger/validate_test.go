package trigger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orbitflow/agentcore/internal/apperr"
)

func baseCronCreate() Create {
	return Create{
		Kind:           KindCron,
		Name:           "nightly-report",
		AgentID:        "support-agent",
		CronExpression: "0 0 * * *",
		Timezone:       "UTC",
	}
}

func baseWebhookCreate() Create {
	return Create{
		Kind:           KindWebhook,
		Name:           "github-hook",
		AgentID:        "support-agent",
		WebhookID:      "wh-123",
		AllowedMethods: []string{"POST"},
	}
}

func TestValidateCommonFields(t *testing.T) {
	t.Run("accepts_a_well_formed_cron_trigger", func(t *testing.T) {
		assert.NoError(t, Validate(baseCronCreate(), "user-1"))
	})

	t.Run("rejects_an_empty_name", func(t *testing.T) {
		in := baseCronCreate()
		in.Name = "  "
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_a_name_over_255_characters", func(t *testing.T) {
		in := baseCronCreate()
		in.Name = strings.Repeat("a", 256)
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_a_description_over_1000_characters", func(t *testing.T) {
		in := baseCronCreate()
		in.Description = strings.Repeat("a", 1001)
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_a_missing_agent_id", func(t *testing.T) {
		in := baseCronCreate()
		in.AgentID = ""
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_a_missing_created_by", func(t *testing.T) {
		assert.True(t, apperr.Is(Validate(baseCronCreate(), ""), apperr.Validation))
	})

	t.Run("rejects_a_failure_threshold_out_of_range", func(t *testing.T) {
		in := baseCronCreate()
		in.FailureThreshold = 101
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_an_unknown_kind", func(t *testing.T) {
		in := baseCronCreate()
		in.Kind = Kind("unknown")
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})
}

func TestValidateCronFields(t *testing.T) {
	t.Run("rejects_a_malformed_cron_expression", func(t *testing.T) {
		in := baseCronCreate()
		in.CronExpression = "not a cron"
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("accepts_a_6_field_cron_expression", func(t *testing.T) {
		in := baseCronCreate()
		in.CronExpression = "0 0 0 * * *"
		assert.NoError(t, Validate(in, "user-1"))
	})

	t.Run("rejects_a_missing_timezone", func(t *testing.T) {
		in := baseCronCreate()
		in.Timezone = ""
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})
}

func TestValidateWebhookFields(t *testing.T) {
	t.Run("accepts_a_well_formed_webhook_trigger", func(t *testing.T) {
		assert.NoError(t, Validate(baseWebhookCreate(), "user-1"))
	})

	t.Run("rejects_a_missing_webhook_id", func(t *testing.T) {
		in := baseWebhookCreate()
		in.WebhookID = ""
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_empty_allowed_methods", func(t *testing.T) {
		in := baseWebhookCreate()
		in.AllowedMethods = nil
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})

	t.Run("rejects_an_invalid_http_method", func(t *testing.T) {
		in := baseWebhookCreate()
		in.AllowedMethods = []string{"TRACE"}
		assert.True(t, apperr.Is(Validate(in, "user-1"), apperr.Validation))
	})
}
