// Package llm implements the InvokeLLM capability (spec §4.7 step 4):
// a provider-agnostic chat completion call used by the Agent Execution
// Workflow's InvokeLLM activity. Provider selection is driven by the
// agent's configured model_id, checked in this order: Bedrock model ids
// route to Bedrock, "claude-*" and "anthropic.*" to Anthropic, "gpt-*",
// "o1*", "o3*", "o4*" and "chatgpt-*" to OpenAI; any other id goes to the
// optional fallback provider, and is rejected as a validation error when
// none is set.
package llm

import (
	"context"
	"strings"

	"golang.org/x/time/rate"

	"github.com/orbitflow/agentcore/internal/apperr"
	"github.com/orbitflow/agentcore/internal/workflow"
)

// Request is the provider-agnostic chat completion input.
type Request struct {
	ModelID     string
	Messages    []workflow.Message
	Tools       []workflow.ToolSchema
	Instruction string
	MaxTokens   int
	Temperature float64
}

// Invoker is the capability the InvokeLLM activity depends on.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (workflow.LLMResponse, error)
}

// Router dispatches to a provider-specific Invoker based on ModelID prefix.
// It implements Invoker itself so it can be registered as the single
// capability the activity layer depends on.
type Router struct {
	anthropic Invoker
	openai    Invoker
	bedrock   Invoker
	// fallback is used when neither a recognized anthropic, openai, nor
	// bedrock model_id prefix matches; nil means an unrecognized model_id fails.
	fallback Invoker
	// limiter paces outbound calls against a provider rate limit (spec §11
	// domain stack: "BudgetTracker pacing"). Nil means unlimited. This lives
	// at the Router, not inside workflow.BudgetTracker, since the limiter's
	// Wait blocks on wall-clock time and the activity invoking Invoke is
	// already outside workflow-replay code, unlike BudgetTracker itself.
	limiter *rate.Limiter
}

// NewRouter builds a Router. Either adapter may be nil if that provider is
// not configured; routing to a nil adapter returns an error.
func NewRouter(anthropic, openai Invoker) *Router {
	return &Router{anthropic: anthropic, openai: openai}
}

// WithFallback sets the adapter used when ModelID matches neither a known
// Anthropic, OpenAI, nor Bedrock prefix.
func (r *Router) WithFallback(inv Invoker) *Router {
	r.fallback = inv
	return r
}

// WithBedrock sets the optional third LLM provider, AWS Bedrock, routed to
// by cross-region inference profile ids and bare Bedrock model ids (see
// isBedrockModel). Checked ahead of the Anthropic prefix since Bedrock's own
// "anthropic.claude-*" model ids would otherwise match it too.
func (r *Router) WithBedrock(inv Invoker) *Router {
	r.bedrock = inv
	return r
}

// WithRateLimit paces outbound LLM calls to at most rps requests per second,
// bursting up to burst.
func (r *Router) WithRateLimit(rps float64, burst int) *Router {
	r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return r
}

// anthropicPrefixes lists the model_id prefixes routed to the Anthropic
// adapter. Claude model identifiers consistently start with "claude-".
var anthropicPrefixes = []string{"claude-", "anthropic."}

// Invoke selects a provider by req.ModelID prefix and delegates to it.
func (r *Router) Invoke(ctx context.Context, req Request) (workflow.LLMResponse, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return workflow.LLMResponse{}, apperr.Wrap(apperr.DependencyUnavailable, "rate limiter wait", err)
		}
	}
	if isBedrockModel(req.ModelID) {
		if r.bedrock == nil {
			return workflow.LLMResponse{}, apperr.New(apperr.Validation, "bedrock model requested but no bedrock adapter configured")
		}
		return r.bedrock.Invoke(ctx, req)
	}
	if isAnthropicModel(req.ModelID) {
		if r.anthropic == nil {
			return workflow.LLMResponse{}, apperr.New(apperr.Validation, "anthropic model requested but no anthropic adapter configured")
		}
		return r.anthropic.Invoke(ctx, req)
	}
	if isOpenAIModel(req.ModelID) {
		if r.openai == nil {
			return workflow.LLMResponse{}, apperr.New(apperr.Validation, "openai model requested but no openai adapter configured")
		}
		return r.openai.Invoke(ctx, req)
	}
	if r.fallback != nil {
		return r.fallback.Invoke(ctx, req)
	}
	return workflow.LLMResponse{}, apperr.New(apperr.Validation, "unrecognized model_id: "+req.ModelID)
}

// WorkflowAdapter adapts a Router to workflow.LLMInvoker's positional-argument
// shape, the form workflow.Activities.LLM is registered against.
type WorkflowAdapter struct {
	Router *Router
}

// Invoke implements workflow.LLMInvoker.
func (a WorkflowAdapter) Invoke(ctx context.Context, modelID string, messages []workflow.Message, tools []workflow.ToolSchema, instruction string) (workflow.LLMResponse, error) {
	return a.Router.Invoke(ctx, Request{ModelID: modelID, Messages: messages, Tools: tools, Instruction: instruction})
}

func isAnthropicModel(modelID string) bool {
	lower := strings.ToLower(modelID)
	for _, p := range anthropicPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// openaiPrefixes lists the model_id prefixes routed to the OpenAI adapter.
var openaiPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

func isOpenAIModel(modelID string) bool {
	lower := strings.ToLower(modelID)
	for _, p := range openaiPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
