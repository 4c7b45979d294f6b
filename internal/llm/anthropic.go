package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/orbitflow/agentcore/internal/workflow"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so tests can substitute a fake without a live API key.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicAdapter implements Invoker on top of the Anthropic Messages API.
type AnthropicAdapter struct {
	msg         MessagesClient
	maxTokens   int
	temperature float64
}

// NewAnthropicAdapter builds an adapter from a Messages client. maxTokens is
// the fallback used when a request does not specify one.
func NewAnthropicAdapter(msg MessagesClient, maxTokens int, temperature float64) (*AnthropicAdapter, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicAdapter{msg: msg, maxTokens: maxTokens, temperature: temperature}, nil
}

// NewAnthropicAdapterFromAPIKey constructs an adapter using the default
// Anthropic HTTP client, reading ANTHROPIC_API_KEY conventions via
// option.WithAPIKey.
func NewAnthropicAdapterFromAPIKey(apiKey string, maxTokens int, temperature float64) (*AnthropicAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicAdapter(&ac.Messages, maxTokens, temperature)
}

// Invoke issues a non-streaming Messages.New request and translates the
// response into the workflow package's LLMResponse.
func (a *AnthropicAdapter) Invoke(ctx context.Context, req Request) (workflow.LLMResponse, error) {
	params, err := a.prepareRequest(req)
	if err != nil {
		return workflow.LLMResponse{}, err
	}
	msg, err := a.msg.New(ctx, *params)
	if err != nil {
		return workflow.LLMResponse{}, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg, req.ModelID), nil
}

func (a *AnthropicAdapter) prepareRequest(req Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	if req.ModelID == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	msgs, system := encodeMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	if req.Instruction != "" {
		system = append([]sdk.TextBlockParam{{Text: req.Instruction}}, system...)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	tools := encodeTools(req.Tools)
	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(req.ModelID),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = a.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return &params, nil
}

func encodeMessages(msgs []workflow.Message) ([]sdk.MessageParam, []sdk.TextBlockParam) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0)
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case "user":
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case "tool":
			content := m.Content
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, content, false)))
		}
	}
	return conversation, system
}

func encodeTools(defs []workflow.ToolSchema) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		raw, err := json.Marshal(def.Parameters)
		if err != nil {
			continue
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			continue
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out
}

func translateAnthropicResponse(msg *sdk.Message, modelID string) workflow.LLMResponse {
	resp := workflow.LLMResponse{Role: "assistant"}
	var text string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				if text != "" {
					text += "\n"
				}
				text += block.Text
			}
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, workflow.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: inputAsMap(block.Input),
			})
		}
	}
	resp.Content = text
	resp.UsageCost = anthropicCost(modelID, msg.Usage.InputTokens, msg.Usage.OutputTokens)
	return resp
}

// anthropicCost is a rough per-million-token price table used for budget
// tracking (spec §4.7 step 1). Prices are approximate and intentionally
// coarse: the workflow only needs a monotonic cost signal for the budget
// warn/exceeded thresholds, not billing-accurate figures.
func anthropicCost(modelID string, inputTokens, outputTokens int64) float64 {
	inRate, outRate := 3.0, 15.0
	switch {
	case containsFold(modelID, "haiku"):
		inRate, outRate = 0.8, 4.0
	case containsFold(modelID, "opus"):
		inRate, outRate = 15.0, 75.0
	}
	return float64(inputTokens)/1_000_000*inRate + float64(outputTokens)/1_000_000*outRate
}

func inputAsMap(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(input, &m); err != nil {
		return map[string]any{"raw": string(input)}
	}
	return m
}
