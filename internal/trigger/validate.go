package trigger

import (
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/orbitflow/agentcore/internal/apperr"
)

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// cronParser validates 5- or 6-field cron expressions. robfig/cron is used
// purely for syntactic validation here; the workflow engine's own Schedule
// API (C4) owns actual firing semantics (spec §9: prefer engine-only
// scheduling, DB-driven evaluation is diagnostic at most).
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks a Create request against spec §4.6's validation rules,
// failing fast with apperr.Validation (surfaced as TriggerValidationError at
// the service boundary).
func Validate(in Create, createdBy string) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.New(apperr.Validation, "name is required")
	}
	if len(in.Name) > 255 {
		return apperr.New(apperr.Validation, "name must be at most 255 characters")
	}
	if len(in.Description) > 1000 {
		return apperr.New(apperr.Validation, "description must be at most 1000 characters")
	}
	if strings.TrimSpace(in.AgentID) == "" {
		return apperr.New(apperr.Validation, "agent_id is required")
	}
	if strings.TrimSpace(createdBy) == "" {
		return apperr.New(apperr.Validation, "created_by is required")
	}
	if in.FailureThreshold == 0 {
		in.FailureThreshold = 5
	}
	if in.FailureThreshold < 1 || in.FailureThreshold > 100 {
		return apperr.New(apperr.Validation, "failure_threshold must be in [1,100]")
	}

	switch in.Kind {
	case KindCron:
		if err := validateCronFields(in.CronExpression, in.Timezone); err != nil {
			return err
		}
	case KindWebhook:
		if err := validateWebhookFields(in.WebhookID, in.AllowedMethods); err != nil {
			return err
		}
	default:
		return apperr.New(apperr.Validation, "kind must be cron or webhook")
	}
	return nil
}

func validateCronFields(expr, tz string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 && len(fields) != 6 {
		return apperr.New(apperr.Validation, "cron_expression must have 5 or 6 fields")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return apperr.Wrap(apperr.Validation, "cron_expression is not valid", err)
	}
	if strings.TrimSpace(tz) == "" {
		return apperr.New(apperr.Validation, "timezone is required")
	}
	return nil
}

func validateWebhookFields(webhookID string, methods []string) error {
	if strings.TrimSpace(webhookID) == "" {
		return apperr.New(apperr.Validation, "webhook_id is required")
	}
	if len(methods) == 0 {
		return apperr.New(apperr.Validation, "allowed_methods must be non-empty")
	}
	for _, m := range methods {
		if !validMethods[strings.ToUpper(m)] {
			return apperr.New(apperr.Validation, "allowed_methods contains an invalid HTTP method: "+m)
		}
	}
	return nil
}
