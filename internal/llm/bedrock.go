package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/orbitflow/agentcore/internal/workflow"
)

// bedrockPrefixes lists the model_id prefixes routed to the Bedrock adapter:
// Bedrock's own cross-region inference profile ids ("us.anthropic.", "eu.anthropic.")
// as well as bare Bedrock model ids ("anthropic.claude-").
var bedrockPrefixes = []string{"us.anthropic.", "eu.anthropic.", "anthropic.claude-", "amazon.titan-", "meta.llama"}

func isBedrockModel(modelID string) bool {
	lower := modelID
	for _, p := range bedrockPrefixes {
		if len(lower) >= len(p) && lower[:len(p)] == p {
			return true
		}
	}
	return false
}

// RuntimeClient captures the subset of the AWS Bedrock runtime client used by
// the adapter, so tests can substitute a fake without live AWS credentials.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockAdapter implements Invoker on top of the AWS Bedrock Converse API,
// the third optional LLM provider alongside Anthropic and OpenAI.
type BedrockAdapter struct {
	runtime     RuntimeClient
	maxTokens   int
	temperature float32
}

// NewBedrockAdapter builds an adapter from a Bedrock runtime client. maxTokens
// is the fallback used when a request does not specify one.
func NewBedrockAdapter(runtime RuntimeClient, maxTokens int, temperature float64) (*BedrockAdapter, error) {
	if runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &BedrockAdapter{runtime: runtime, maxTokens: maxTokens, temperature: float32(temperature)}, nil
}

// Invoke issues a Converse request and translates the response into the
// workflow package's LLMResponse.
func (a *BedrockAdapter) Invoke(ctx context.Context, req Request) (workflow.LLMResponse, error) {
	input, err := a.prepareRequest(req)
	if err != nil {
		return workflow.LLMResponse{}, err
	}
	out, err := a.runtime.Converse(ctx, input)
	if err != nil {
		return workflow.LLMResponse{}, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateBedrockResponse(out, req.ModelID), nil
}

func (a *BedrockAdapter) prepareRequest(req Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	if req.ModelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}
	msgs, system := encodeBedrockMessages(req.Messages)
	if len(msgs) == 0 {
		return nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	if req.Instruction != "" {
		system = append([]brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.Instruction}}, system...)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	temp := float32(req.Temperature)
	if temp <= 0 {
		temp = a.temperature
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  &req.ModelID,
		Messages: msgs,
		InferenceConfig: &brtypes.InferenceConfiguration{
			MaxTokens:   int32Ptr(int32(maxTokens)),
			Temperature: float32Ptr(temp),
		},
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig := encodeBedrockTools(req.Tools); toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	return input, nil
}

func encodeBedrockMessages(msgs []workflow.Message) ([]brtypes.Message, []brtypes.SystemContentBlock) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0)
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if m.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			}
		case "user":
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		case "assistant":
			blocks := make([]brtypes.ContentBlock, 0, 1+len(m.ToolCalls))
			if m.Content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: &tc.ID,
					Name:      &tc.Name,
					Input:     document.NewLazyDocument(tc.Arguments),
				}})
			}
			if len(blocks) > 0 {
				conversation = append(conversation, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
			}
		case "tool":
			conversation = append(conversation, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
					ToolUseId: &m.ToolCallID,
					Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Content}},
				}}},
			})
		}
	}
	return conversation, system
}

func encodeBedrockTools(defs []workflow.ToolSchema) *brtypes.ToolConfiguration {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		name, desc := def.Name, def.Description
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        &name,
			Description: &desc,
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(def.Parameters)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func translateBedrockResponse(out *bedrockruntime.ConverseOutput, modelID string) workflow.LLMResponse {
	resp := workflow.LLMResponse{Role: "assistant"}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	var text string
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			if text != "" {
				text += "\n"
			}
			text += b.Value
		case *brtypes.ContentBlockMemberToolUse:
			resp.ToolCalls = append(resp.ToolCalls, workflow.ToolCall{
				ID:        derefStr(b.Value.ToolUseId),
				Name:      derefStr(b.Value.Name),
				Arguments: documentAsMap(b.Value.Input),
			})
		}
	}
	resp.Content = text
	if out.Usage != nil {
		resp.UsageCost = bedrockCost(modelID, int64(derefInt32(out.Usage.InputTokens)), int64(derefInt32(out.Usage.OutputTokens)))
	}
	return resp
}

// bedrockCost mirrors anthropicCost/openAICost: a coarse per-million-token
// price table sufficient for the budget tracker's warn/exceeded signal, not
// billing. Bedrock-hosted Anthropic models are priced the same as the direct
// Anthropic API.
func bedrockCost(modelID string, inputTokens, outputTokens int64) float64 {
	inRate, outRate := 3.0, 15.0
	switch {
	case containsFold(modelID, "haiku"):
		inRate, outRate = 0.8, 4.0
	case containsFold(modelID, "opus"):
		inRate, outRate = 15.0, 75.0
	}
	return float64(inputTokens)/1_000_000*inRate + float64(outputTokens)/1_000_000*outRate
}

func documentAsMap(d document.Interface) map[string]any {
	if d == nil {
		return nil
	}
	var m map[string]any
	if err := d.UnmarshalSmithyDocument(&m); err != nil {
		return nil
	}
	return m
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func int32Ptr(v int32) *int32     { return &v }
func float32Ptr(v float32) *float32 { return &v }
