// Package llm provides the reasoning clients the agent talks to: Gemini,
// Anthropic, OpenAI-compatible endpoints, and a local Ollama server, all
// behind one [Client] interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse marks a model reply the agent cannot act on: no
// text and no tool calls, a nameless tool call, or tool arguments that
// do not parse. The agent treats it as recoverable within a turn.
var ErrMalformedResponse = errors.New("malformed model response")

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// Tools are in the OpenAI function-calling shape produced by the
	// tool registry.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Options are the sampling settings shared by every provider.
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 2048
	}
	return o.MaxTokens
}

// checkResponse rejects replies the agent cannot act on.
func checkResponse(resp *ChatResponse) (*ChatResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: no response", ErrMalformedResponse)
	}
	if len(resp.Message.ToolCalls) == 0 && strings.TrimSpace(resp.Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	for i, tc := range resp.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool call %d has no name", ErrMalformedResponse, i)
		}
	}
	return resp, nil
}
