package llm

import (
	"encoding/json"
	"strings"
)

// ParseTextToolCalls extracts tool calls a model wrote into its content
// text instead of the native tool_calls field. Handled formats:
//
//   - raw JSON object: {"name": "...", "arguments": {...}}
//   - JSON array of the above
//   - tagged: <tool_call>{...}</tool_call>
//
// Returns nil when the content does not look like a tool call.
func ParseTextToolCalls(content string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.Contains(content, "<tool_call>") {
		start := strings.Index(content, "<tool_call>")
		end := strings.Index(content, "</tool_call>")
		if end > start {
			content = strings.TrimSpace(content[start+len("<tool_call>") : end])
		} else {
			// No closing tag: take the rest.
			content = strings.TrimSpace(content[start+len("<tool_call>"):])
		}
	}

	type textCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	var many []textCall
	if err := json.Unmarshal([]byte(content), &many); err == nil && len(many) > 0 && many[0].Name != "" {
		out := make([]ToolCall, 0, len(many))
		for _, c := range many {
			out = append(out, ToolCall{Name: c.Name, Arguments: ensureArgs(c.Arguments)})
		}
		return out
	}

	var one textCall
	if err := json.Unmarshal([]byte(content), &one); err == nil && one.Name != "" {
		return []ToolCall{{Name: one.Name, Arguments: ensureArgs(one.Arguments)}}
	}

	return nil
}

func ensureArgs(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
