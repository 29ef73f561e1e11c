package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
	ToolName   string     `json:"tool_name,omitempty"`    // For tool responses; Gemini and Ollama key results by name
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	// ID is provider-assigned when available. The agent fills in an ID
	// for providers that do not issue one.
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name and decoded arguments of a tool call.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any LLM provider.
// Wire format conversion happens at provider boundaries.
type ChatResponse struct {
	Model   string
	Message Message

	InputTokens  int
	OutputTokens int
}

// functionTool is the OpenAI function-calling tool shape.
type functionTool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// decodeTools converts registry tool maps into a typed form. Parameter
// schemas are round-tripped through JSON so every provider sees plain
// decoded values ([]any, float64) regardless of how they were built.
func decodeTools(tools []map[string]any) ([]functionTool, error) {
	out := make([]functionTool, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)

		params := map[string]any{"type": "object", "properties": map[string]any{}}
		if p, ok := fn["parameters"]; ok && p != nil {
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, fmt.Errorf("tool %s: encode parameters: %w", name, err)
			}
			params = nil
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("tool %s: decode parameters: %w", name, err)
			}
		}
		out = append(out, functionTool{Name: name, Description: desc, Parameters: params})
	}
	return out, nil
}

// parseArguments decodes a JSON argument string. Empty input is an
// empty argument set.
func parseArguments(tool string, raw []byte) (map[string]any, error) {
	args := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments for %s: %v", ErrMalformedResponse, tool, err)
	}
	return args, nil
}
