package llm

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeGemini struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGemini) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents, f.config = contents, cfg
	return f.resp, f.err
}

func (f *fakeGemini) Get(context.Context, string, *genai.GetModelConfig) (*genai.Model, error) {
	return &genai.Model{}, f.err
}

func TestGeminiChat(t *testing.T) {
	fake := &fakeGemini{resp: &genai.GenerateContentResponse{
		ModelVersion: "gemini-2.0-flash-001",
		Candidates: []*genai.Candidate{{Content: &genai.Content{
			Role: genai.RoleModel,
			Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{FunctionCall: &genai.FunctionCall{Name: "search_places", Args: map[string]any{"near_city": "Sylhet"}}},
			},
		}}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 90, CandidatesTokenCount: 12},
	}}
	c := newGeminiClient(fake, "gemini-2.0-flash", Options{Temperature: 0.7, MaxTokens: 2048}, nil)

	tools := []map[string]any{{
		"type": "function",
		"function": map[string]any{
			"name": "search_places",
			"parameters": map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"near_city": map[string]any{"type": "string"}, "limit": map[string]any{"type": "integer", "minimum": 1.0}},
				"required":             []string{"near_city"},
				"additionalProperties": false,
			},
		},
	}}
	resp, err := c.Chat(t.Context(), "gemini-2.0-flash", []Message{
		{Role: RoleSystem, Content: "Travel assistant."},
		{Role: RoleUser, Content: "What is near Sylhet?"},
	}, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if fake.config.SystemInstruction == nil || fake.config.SystemInstruction.Parts[0].Text != "Travel assistant." {
		t.Errorf("system instruction = %+v", fake.config.SystemInstruction)
	}
	if len(fake.contents) != 1 || fake.contents[0].Role != genai.RoleUser {
		t.Errorf("contents = %+v", fake.contents)
	}
	schema := fake.config.Tools[0].FunctionDeclarations[0].Parameters
	if schema.Type != genai.TypeObject || len(schema.Required) != 1 || *schema.Properties["limit"].Minimum != 1 {
		t.Errorf("schema = %+v", schema)
	}

	if resp.Message.Content != "" || len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("message = %+v", resp.Message)
	}
	if resp.Model != "gemini-2.0-flash-001" || resp.InputTokens != 90 || resp.OutputTokens != 12 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestConvertToGemini_GroupsToolResults(t *testing.T) {
	contents, _ := convertToGemini([]Message{
		{Role: RoleUser, Content: "Hotels and weather in Dhaka"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Function: FunctionCall{Name: "search_hotels"}},
			{ID: "b", Function: FunctionCall{Name: "get_weather"}},
		}},
		{Role: RoleTool, ToolCallID: "a", ToolName: "search_hotels", Content: `{"success":true,"count":2}`},
		{Role: RoleTool, ToolCallID: "b", ToolName: "get_weather", Content: `not json`},
		{Role: RoleAssistant, Content: "Two hotels, 31°C."},
	})

	if len(contents) != 4 {
		t.Fatalf("got %d contents, want 4", len(contents))
	}
	results := contents[2]
	if results.Role != genai.RoleUser || len(results.Parts) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if r := results.Parts[0].FunctionResponse; r.Name != "search_hotels" || r.Response["count"] != 2.0 {
		t.Errorf("first response = %+v", r)
	}
	if r := results.Parts[1].FunctionResponse; r.Response["result"] != "not json" {
		t.Errorf("second response = %+v", r)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("assistant role = %s", contents[1].Role)
	}
}

func TestGeminiChat_NoCandidates(t *testing.T) {
	c := newGeminiClient(&fakeGemini{resp: &genai.GenerateContentResponse{}}, "m", Options{}, nil)
	_, err := c.Chat(t.Context(), "m", []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestGeminiPing(t *testing.T) {
	boom := errors.New("403 API key not valid")
	c := newGeminiClient(&fakeGemini{err: boom}, "gemini-2.0-flash", Options{}, nil)
	if err := c.Ping(t.Context()); !errors.Is(err, boom) {
		t.Errorf("Ping = %v", err)
	}
}
