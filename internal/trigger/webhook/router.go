// Package webhook implements the Webhook Router (C5, spec §4.5): maps a
// public webhook id to a trigger, validates method/headers/body against the
// trigger's validation_rules, parses the provider-specific payload, and
// invokes the Trigger Service.
package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/trigger"
)

// TriggerLookup abstracts the Trigger Service's GetByWebhookID + ExecuteTrigger
// surface so this package only depends on what it actually calls.
type TriggerLookup interface {
	GetByWebhookID(ctx context.Context, webhookID string) (*trigger.Trigger, error)
	ExecuteTrigger(ctx context.Context, triggerID string, eventData map[string]any) (*trigger.TriggerExecution, error)
}

// Request is the transport-agnostic view of an inbound webhook call, so the
// pipeline in Handle has no net/http dependency beyond status codes.
type Request struct {
	Method  string
	Headers http.Header
	Body    []byte
}

// Result carries the HTTP status and an opaque response body for the caller
// to write back (spec §4.5 step 6: 200/400/404/405/500).
type Result struct {
	Status int
	Body   map[string]any
}

// Router implements the pipeline of spec §4.5.
type Router struct {
	triggers TriggerLookup
	log      telemetry.Logger
}

// NewRouter constructs a Router.
func NewRouter(triggers TriggerLookup, log telemetry.Logger) *Router {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Router{triggers: triggers, log: log}
}

// Handle runs the full pipeline for a single inbound webhook request.
func (r *Router) Handle(ctx context.Context, webhookID string, req Request) Result {
	t, err := r.triggers.GetByWebhookID(ctx, webhookID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return Result{Status: http.StatusNotFound, Body: errBody("webhook not found")}
		}
		r.log.Error(ctx, "webhook lookup failed", "webhook_id", webhookID, "err", err)
		return Result{Status: http.StatusInternalServerError, Body: errBody("internal error")}
	}

	if !t.IsActive {
		return Result{Status: http.StatusBadRequest, Body: errBody("inactive")}
	}

	if !methodAllowed(req.Method, t.AllowedMethods) {
		return Result{Status: http.StatusMethodNotAllowed, Body: errBody("method not allowed")}
	}

	if err := validate(req, t.ValidationRules); err != nil {
		return Result{Status: http.StatusBadRequest, Body: errBody("validation failed")}
	}

	eventData := parse(t.WebhookType, req)

	exec, err := r.triggers.ExecuteTrigger(ctx, t.ID, eventData)
	if err != nil {
		r.log.Error(ctx, "trigger execution failed", "trigger_id", t.ID, "err", err)
		return Result{Status: http.StatusInternalServerError, Body: errBody("internal error")}
	}
	return Result{Status: http.StatusOK, Body: map[string]any{
		"status":       "success",
		"execution_id": exec.ID,
	}}
}

func errBody(msg string) map[string]any {
	return map[string]any{"status": "error", "message": msg}
}

func methodAllowed(method string, allowed []string) bool {
	method = strings.ToUpper(method)
	for _, m := range allowed {
		if strings.ToUpper(m) == method {
			return true
		}
	}
	return false
}

// validate applies the validation_rules map of spec §4.5 step 4. Failures
// return an opaque error deliberately — the caller must not leak which rule
// failed, to avoid letting an attacker probe the rule set.
func validate(req Request, rules map[string]any) error {
	if rules == nil {
		return nil
	}
	if raw, ok := rules["required_headers"]; ok {
		headers, _ := raw.([]any)
		for _, h := range headers {
			name, _ := h.(string)
			if name == "" {
				continue
			}
			if req.Headers.Get(name) == "" {
				return apperr.New(apperr.Validation, "missing required header")
			}
		}
	}
	if raw, ok := rules["content_type"]; ok {
		want, _ := raw.(string)
		if want != "" && !strings.Contains(req.Headers.Get("Content-Type"), want) {
			return apperr.New(apperr.Validation, "content type mismatch")
		}
	}
	if raw, ok := rules["body_format"]; ok {
		format, _ := raw.(string)
		if format == "json" {
			var v any
			if len(req.Body) == 0 || json.Unmarshal(req.Body, &v) != nil {
				return apperr.New(apperr.Validation, "body is not valid json")
			}
		}
	}
	if raw, ok := rules["json_schema"]; ok {
		if err := validateJSONSchema(raw, req.Body); err != nil {
			return err
		}
	}
	return nil
}

// validateJSONSchema compiles an inline JSON Schema document (spec §4.5's
// validation_rules, expanded to accept a "json_schema" rule) and validates
// the webhook body against it.
func validateJSONSchema(schemaRaw any, body []byte) error {
	schemaDoc, ok := schemaRaw.(map[string]any)
	if !ok {
		return apperr.New(apperr.Validation, "json_schema rule is malformed")
	}
	if len(body) == 0 {
		return apperr.New(apperr.Validation, "body is not valid json")
	}
	instance, err := jsonschema.UnmarshalJSON(bytesReader(body))
	if err != nil {
		return apperr.New(apperr.Validation, "body is not valid json")
	}
	compiler := jsonschema.NewCompiler()
	res, err := jsonschema.UnmarshalJSON(strings.NewReader(mustMarshal(schemaDoc)))
	if err != nil {
		return apperr.Wrap(apperr.Validation, "json_schema rule could not be parsed", err)
	}
	const resourceID = "trigger://validation-rules/json_schema"
	if err := compiler.AddResource(resourceID, res); err != nil {
		return apperr.Wrap(apperr.Validation, "json_schema rule could not be loaded", err)
	}
	sch, err := compiler.Compile(resourceID)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "json_schema rule does not compile", err)
	}
	if err := sch.Validate(instance); err != nil {
		return apperr.Wrap(apperr.Validation, "body does not match json_schema", err)
	}
	return nil
}

func mustMarshal(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func bytesReader(b []byte) *strings.Reader {
	return strings.NewReader(string(b))
}
