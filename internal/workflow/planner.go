package workflow

import (
	"encoding/json"
	"regexp"
	"strings"
)

// CompletionToolName is the sentinel tool call that signals the agent is
// done (spec §4.7 step 4: "recognize a sentinel completion/task_complete
// call even when malformed").
const CompletionToolName = "completion"

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractToolCalls implements the "robust extraction" grammar of spec §4.7
// step 4: prefer the LLM response's structured tool_calls; if absent, scan
// the content for an embedded JSON tool invocation; and always recognize a
// completion/task_complete sentinel even from malformed content, since an
// LLM that "means" to finish should not get stuck looping on a parse error.
func ExtractToolCalls(resp LLMResponse) []ToolCall {
	if len(resp.ToolCalls) > 0 {
		return normalizeCompletionAliases(resp.ToolCalls)
	}
	if tc, ok := extractFromContent(resp.Content); ok {
		return normalizeCompletionAliases([]ToolCall{tc})
	}
	if isCompletionSentinel(resp.Content) {
		return []ToolCall{{ID: "sentinel-completion", Name: CompletionToolName, Arguments: map[string]any{
			"result": resp.Content,
		}}}
	}
	return nil
}

// normalizeCompletionAliases maps the task_complete alias onto the
// canonical completion tool name.
func normalizeCompletionAliases(calls []ToolCall) []ToolCall {
	for i := range calls {
		if strings.EqualFold(calls[i].Name, "task_complete") {
			calls[i].Name = CompletionToolName
		}
	}
	return calls
}

// extractFromContent scans model content for an embedded JSON object
// shaped like {"tool": "...", "arguments": {...}} or {"name": "...", ...}.
func extractFromContent(content string) (ToolCall, bool) {
	match := jsonObjectPattern.FindString(content)
	if match == "" {
		return ToolCall{}, false
	}
	var raw struct {
		Tool      string         `json:"tool"`
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return ToolCall{}, false
	}
	name := raw.Tool
	if name == "" {
		name = raw.Name
	}
	if name == "" {
		return ToolCall{}, false
	}
	return ToolCall{ID: "parsed-" + name, Name: name, Arguments: raw.Arguments}, true
}

var completionSentinelPattern = regexp.MustCompile(`(?i)\b(task[_ ]?complete|completion)\b`)

// isCompletionSentinel recognizes a plain-text completion signal even when
// the content is not valid JSON at all — the last-resort branch of the
// extraction grammar.
func isCompletionSentinel(content string) bool {
	return completionSentinelPattern.MatchString(content)
}

// SplitCompletion separates a regular tool call batch from a trailing
// completion call, per spec §4.7 step 4: non-completion tools execute
// first, then completion (if present) ends the loop.
func SplitCompletion(calls []ToolCall) (tools []ToolCall, completion *ToolCall) {
	for i := range calls {
		if calls[i].Name == CompletionToolName {
			c := calls[i]
			completion = &c
			continue
		}
		tools = append(tools, calls[i])
	}
	return tools, completion
}
