package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/orbitflow/agentcore/internal/workflow"
)

// ChatCompletionsClient captures the subset of openai-go used by the
// adapter, so tests can substitute a fake without a live API key.
type ChatCompletionsClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// OpenAIAdapter implements Invoker on top of the Chat Completions API.
type OpenAIAdapter struct {
	chat        ChatCompletionsClient
	maxTokens   int
	temperature float64
}

// NewOpenAIAdapter builds an adapter from a Chat Completions client.
func NewOpenAIAdapter(chat ChatCompletionsClient, maxTokens int, temperature float64) (*OpenAIAdapter, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	return &OpenAIAdapter{chat: chat, maxTokens: maxTokens, temperature: temperature}, nil
}

// NewOpenAIAdapterFromAPIKey constructs an adapter using the default
// openai-go HTTP client.
func NewOpenAIAdapterFromAPIKey(apiKey string, maxTokens int, temperature float64) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIAdapter(&c.Chat.Completions, maxTokens, temperature)
}

// Invoke issues a Chat.Completions.New request and translates the response
// into the workflow package's LLMResponse.
func (a *OpenAIAdapter) Invoke(ctx context.Context, req Request) (workflow.LLMResponse, error) {
	params, err := a.prepareRequest(req)
	if err != nil {
		return workflow.LLMResponse{}, err
	}
	resp, err := a.chat.New(ctx, *params)
	if err != nil {
		return workflow.LLMResponse{}, fmt.Errorf("openai chat completions.new: %w", err)
	}
	return translateOpenAIResponse(resp, req.ModelID), nil
}

func (a *OpenAIAdapter) prepareRequest(req Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	if req.ModelID == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	msgs := encodeOpenAIMessages(req.Messages, req.Instruction)
	if len(msgs) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	params := sdk.ChatCompletionNewParams{
		Model:    req.ModelID,
		Messages: msgs,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(maxTokens))
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = a.temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	if tools := encodeOpenAITools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	return &params, nil
}

func encodeOpenAIMessages(msgs []workflow.Message, instruction string) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if instruction != "" {
		out = append(out, sdk.SystemMessage(instruction))
	}
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if m.Content != "" {
				out = append(out, sdk.SystemMessage(m.Content))
			}
		case "user":
			out = append(out, sdk.UserMessage(m.Content))
		case "assistant":
			out = append(out, sdk.AssistantMessage(m.Content))
		case "tool":
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func encodeOpenAITools(defs []workflow.ToolSchema) []sdk.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, sdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: sdk.String(def.Description),
				Parameters:  shared.FunctionParameters(def.Parameters),
			},
		})
	}
	return out
}

func translateOpenAIResponse(resp *sdk.ChatCompletion, modelID string) workflow.LLMResponse {
	out := workflow.LLMResponse{Role: "assistant"}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, workflow.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: parseToolArguments(call.Function.Arguments),
		})
	}
	out.UsageCost = openAICost(modelID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return out
}

func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{"raw": raw}
	}
	return m
}

// openAICost mirrors anthropicCost: a coarse per-million-token price table
// sufficient for the budget tracker's warn/exceeded signal, not billing.
func openAICost(modelID string, promptTokens, completionTokens int64) float64 {
	inRate, outRate := 2.5, 10.0
	switch {
	case containsFold(modelID, "mini"):
		inRate, outRate = 0.15, 0.6
	case containsFold(modelID, "o1"), containsFold(modelID, "o3"):
		inRate, outRate = 15.0, 60.0
	}
	return float64(promptTokens)/1_000_000*inRate + float64(completionTokens)/1_000_000*outRate
}
