package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/nugget/gotravel-agent/internal/buildinfo"
	"github.com/nugget/gotravel-agent/internal/config"
	"github.com/nugget/gotravel-agent/internal/httpkit"
)

// OpenAIClient talks to OpenAI or any endpoint that speaks the chat
// completions API.
type OpenAIClient struct {
	client *openai.Client
	opts   Options
	logger *slog.Logger
}

// NewOpenAIClient creates a client. An empty baseURL uses OpenAI.
func NewOpenAIClient(apiKey, baseURL string, opts Options, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpkit.NewClient(
		httpkit.WithTimeout(0), // ctx deadlines bound each call
		httpkit.WithUserAgent(buildinfo.UserAgent()),
	)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger.With("provider", "openai"),
	}
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	msgs, err := convertToOpenAI(messages)
	if err != nil {
		return nil, err
	}
	defs, err := decodeTools(tools)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(c.opts.Temperature),
		MaxTokens:   c.opts.maxTokens(),
	}
	for _, d := range defs {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(msgs),
		"tools", len(req.Tools),
	)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrMalformedResponse)
	}

	choice := resp.Choices[0].Message
	out := &ChatResponse{
		Model: resp.Model,
		Message: Message{
			Role:    RoleAssistant,
			Content: choice.Content,
		},
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range choice.ToolCalls {
		args, err := parseArguments(tc.Function.Name, []byte(tc.Function.Arguments))
		if err != nil {
			return nil, err
		}
		out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
			ID:       tc.ID,
			Function: FunctionCall{Name: tc.Function.Name, Arguments: args},
		})
	}

	c.logger.Debug("response received",
		"model", out.Model,
		"input_tokens", out.InputTokens,
		"output_tokens", out.OutputTokens,
		"tool_calls", len(out.Message.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", out.Message.Content)
	return checkResponse(out)
}

// Ping lists models to verify the key and endpoint.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai ping: %w", err)
	}
	return nil
}

func convertToOpenAI(messages []Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
		switch msg.Role {
		case RoleAssistant:
			for _, tc := range msg.ToolCalls {
				args := tc.Function.Arguments
				if args == nil {
					args = map[string]any{}
				}
				raw, err := json.Marshal(args)
				if err != nil {
					return nil, fmt.Errorf("encode arguments for %s: %w", tc.Function.Name, err)
				}
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: tc.Function.Name, Arguments: string(raw)},
				})
			}
		case RoleTool:
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.ToolName
		}
		out = append(out, m)
	}
	return out, nil
}
