package trigger

import (
	"context"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/orbitflow/agentcore/internal/telemetry"
)

// ConditionEvaluator evaluates a trigger's conditions map against inbound
// event data (spec §4.6 step 3). An LLM-backed evaluator may be wired in
// front of the simple/CEL evaluators; on its failure, evaluation falls
// through to the deterministic evaluator below.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, conditions map[string]any, eventData map[string]any) (bool, error)
}

// LLMConditionEvaluator is the optional LLM-backed evaluator slot (spec
// §4.6: "if an LLM evaluator is wired, call it"). Out of scope to implement
// (LLM invocation lives behind internal/llm.Invoker) — callers that want this
// behavior construct a Service with one set; it is nil by default.
type LLMConditionEvaluator interface {
	ConditionEvaluator
}

// SimpleEvaluator implements the spec's default dotted-path field_matches
// evaluator. ErrorDefault controls the permissive-vs-strict choice left open
// by spec §9 (default true, matching the spec's stated default).
type SimpleEvaluator struct {
	ErrorDefault bool
	Log          telemetry.Logger
}

// NewSimpleEvaluator constructs the default evaluator with the spec's
// permissive-on-error behavior.
func NewSimpleEvaluator(log telemetry.Logger) *SimpleEvaluator {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &SimpleEvaluator{ErrorDefault: true, Log: log}
}

// Evaluate supports `field_matches: {"a.b.c": value, ...}` with dotted-path
// lookup into event_data; all matches must hold. Evaluation errors (missing
// path, non-map intermediate, field_matches not a map) default to
// ErrorDefault to avoid silently dropping events, per spec §4.6 and §9 Open
// Question 1. A found value of a different type than wanted is a non-match
// and returns false.
func (e *SimpleEvaluator) Evaluate(ctx context.Context, conditions map[string]any, eventData map[string]any) (bool, error) {
	raw, ok := conditions["field_matches"]
	if !ok {
		return true, nil
	}
	matches, ok := raw.(map[string]any)
	if !ok {
		e.Log.Warn(ctx, "field_matches is not a map; using error default", "default", e.ErrorDefault)
		return e.ErrorDefault, nil
	}
	for path, want := range matches {
		got, found := dottedLookup(eventData, path)
		if !found {
			e.Log.Warn(ctx, "condition path not found in event data", "path", path, "default", e.ErrorDefault)
			return e.ErrorDefault, nil
		}
		if !valuesEqual(got, want) {
			return false, nil
		}
	}
	return true, nil
}

func dottedLookup(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = data
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func valuesEqual(a, b any) bool {
	// JSON round-tripped numbers are float64; normalize common shapes so
	// "1" (stored) compares equal to 1.0 (decoded event payload).
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// CELEvaluator offers a richer expression-based condition evaluator as an
// alternative backend to SimpleEvaluator, grounded on compozy-compozy's use
// of google/cel-go for its webhook event filters. Conditions carry a single
// "expression" string field evaluated with `data` bound to event_data.
type CELEvaluator struct {
	ErrorDefault bool
	Log          telemetry.Logger
	env          *cel.Env
}

// NewCELEvaluator constructs a CEL-backed evaluator with a `data` variable
// of type map(string, dyn) bound to the event payload.
func NewCELEvaluator(log telemetry.Logger) (*CELEvaluator, error) {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	env, err := cel.NewEnv(cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, err
	}
	return &CELEvaluator{ErrorDefault: true, Log: log, env: env}, nil
}

func (e *CELEvaluator) Evaluate(ctx context.Context, conditions map[string]any, eventData map[string]any) (bool, error) {
	raw, ok := conditions["expression"]
	if !ok {
		return true, nil
	}
	expr, ok := raw.(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return e.ErrorDefault, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		e.Log.Warn(ctx, "cel compile failed; using error default", "err", issues.Err())
		return e.ErrorDefault, nil
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		e.Log.Warn(ctx, "cel program construction failed; using error default", "err", err)
		return e.ErrorDefault, nil
	}
	out, _, err := prg.Eval(map[string]any{"data": eventData})
	if err != nil {
		e.Log.Warn(ctx, "cel eval failed; using error default", "err", err)
		return e.ErrorDefault, nil
	}
	b, ok := out.Value().(bool)
	if !ok {
		return e.ErrorDefault, nil
	}
	return b, nil
}
