package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/nugget/gotravel-agent/internal/config"
)

// geminiModels is the part of genai's Models service this client uses.
// *genai.Models satisfies it.
type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	models    geminiModels
	pingModel string
	opts      Options
	logger    *slog.Logger
}

// NewGeminiClient creates a Gemini API client. pingModel is the model
// looked up by [GeminiClient.Ping].
func NewGeminiClient(ctx context.Context, apiKey, pingModel string, opts Options, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGeminiClient(client.Models, pingModel, opts, logger), nil
}

func newGeminiClient(models geminiModels, pingModel string, opts Options, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{
		models:    models,
		pingModel: pingModel,
		opts:      opts,
		logger:    logger.With("provider", "gemini"),
	}
}

// Chat sends a generateContent request.
func (c *GeminiClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	contents, system := convertToGemini(messages)

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.opts.Temperature)),
		MaxOutputTokens: int32(min(c.opts.maxTokens(), math.MaxInt32)),
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	geminiTools, err := convertToolsToGemini(tools)
	if err != nil {
		return nil, err
	}
	cfg.Tools = geminiTools

	c.logger.Debug("preparing request",
		"model", model,
		"contents", len(contents),
		"tools", len(tools),
		"system_len", len(system),
	)

	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	result, err := convertFromGemini(resp, model)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", result.Message.Content)
	return checkResponse(result)
}

// Ping fetches the ping model's metadata.
func (c *GeminiClient) Ping(ctx context.Context) error {
	if _, err := c.models.Get(ctx, c.pingModel, nil); err != nil {
		return fmt.Errorf("gemini ping: %w", err)
	}
	return nil
}

// convertToGemini maps messages onto Gemini contents. Assistant turns
// use the "model" role. Consecutive tool results share one user
// content so they follow the model turn that requested them.
func convertToGemini(messages []Message) ([]*genai.Content, string) {
	var systemParts []string
	var result []*genai.Content
	var pending *genai.Content

	flush := func() {
		if pending != nil {
			result = append(result, pending)
			pending = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == RoleTool {
			if pending == nil {
				pending = &genai.Content{Role: genai.RoleUser}
			}
			pending.Parts = append(pending.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.ToolName,
					Response: functionResponse(msg.Content),
				},
			})
			continue
		}
		flush()

		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)

		case RoleAssistant:
			content := &genai.Content{Role: genai.RoleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Function.Name,
						Args: tc.Function.Arguments,
					},
				})
			}
			if len(content.Parts) > 0 {
				result = append(result, content)
			}

		case RoleUser:
			result = append(result, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	flush()

	return result, strings.Join(systemParts, "\n\n")
}

// functionResponse decodes a tool result envelope. Non-object results
// are wrapped in {"result": ...}.
func functionResponse(content string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil || m == nil {
		return map[string]any{"result": content}
	}
	return m
}

// convertToolsToGemini converts OpenAI-format tool definitions to
// Gemini function declarations.
func convertToolsToGemini(tools []map[string]any) ([]*genai.Tool, error) {
	defs, err := decodeTools(tools)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  geminiSchema(d.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// geminiSchema converts a decoded JSON Schema to Gemini's subset.
// Keywords Gemini does not accept, such as additionalProperties, are
// dropped.
func geminiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{Default: m["default"]}
	if t, ok := m["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	s.Description, _ = m["description"].(string)
	s.Enum = stringList(m["enum"])
	s.Required = stringList(m["required"])
	if v, ok := m["minimum"].(float64); ok {
		s.Minimum = &v
	}
	if v, ok := m["maximum"].(float64); ok {
		s.Maximum = &v
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = geminiSchema(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = geminiSchema(items)
	}
	return s
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// convertFromGemini reads the first candidate. Thought parts are
// skipped.
func convertFromGemini(resp *genai.GenerateContentResponse, model string) (*ChatResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", ErrMalformedResponse)
	}

	var content strings.Builder
	var toolCalls []ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			content.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:       fc.ID,
				Function: FunctionCall{Name: fc.Name, Arguments: args},
			})
		}
	}

	out := &ChatResponse{
		Model: model,
		Message: Message{
			Role:      RoleAssistant,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	return out, nil
}
