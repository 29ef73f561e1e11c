package agent

import (
	"github.com/nugget/gotravel-agent/internal/llm"
	"github.com/nugget/gotravel-agent/internal/session"
)

// buildMessages assembles the model conversation for a turn: system
// prompt, prior history, then the new user message.
//
// Stored tool observations are regrouped the way providers expect them:
// observations from one dispatch round become a single assistant
// message carrying the tool calls, followed by one tool message per
// result. Anything before the first user message is dropped, since
// providers reject a conversation that opens with the assistant.
func buildMessages(system string, history []session.Message, userMessage string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})

	start := len(history)
	for i, m := range history {
		if m.Role == session.RoleUser {
			start = i
			break
		}
	}
	history = history[start:]

	for i := 0; i < len(history); {
		m := history[i]
		switch m.Role {
		case session.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: m.Content})
			i++
		case session.RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
			i++
		case session.RoleToolObservation:
			j := i + 1
			for j < len(history) && sameRound(history[i], history[j]) {
				j++
			}
			msgs = append(msgs, observationMessages(history[i:j])...)
			i = j
		default:
			i++
		}
	}

	return append(msgs, llm.Message{Role: llm.RoleUser, Content: userMessage})
}

func sameRound(first, next session.Message) bool {
	if next.Role != session.RoleToolObservation {
		return false
	}
	if first.Tool == nil || next.Tool == nil {
		return first.Tool == nil && next.Tool == nil
	}
	return first.Tool.Round == next.Tool.Round
}

func observationMessages(group []session.Message) []llm.Message {
	calls := make([]llm.ToolCall, len(group))
	results := make([]llm.Message, len(group))
	for i, m := range group {
		var name, id string
		var args map[string]any
		if m.Tool != nil {
			name, id, args = m.Tool.Name, m.Tool.CallID, m.Tool.Arguments
		}
		if args == nil {
			args = map[string]any{}
		}
		calls[i] = llm.ToolCall{ID: id, Function: llm.FunctionCall{Name: name, Arguments: args}}
		results[i] = llm.Message{Role: llm.RoleTool, Content: m.Content, ToolCallID: id, ToolName: name}
	}
	out := make([]llm.Message, 0, len(group)+1)
	out = append(out, llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})
	return append(out, results...)
}
