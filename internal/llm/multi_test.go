package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type namedClient struct {
	name  string
	calls int
}

func (n *namedClient) Chat(context.Context, string, []Message, []map[string]any) (*ChatResponse, error) {
	n.calls++
	return &ChatResponse{Model: n.name, Message: Message{Role: RoleAssistant, Content: n.name}}, nil
}

func (n *namedClient) Ping(context.Context) error { return nil }

func TestMultiClient_Routing(t *testing.T) {
	gemini := &namedClient{name: "gemini"}
	ollama := &namedClient{name: "ollama"}
	route := func(model string) string {
		if strings.HasPrefix(model, "gemini") {
			return "gemini"
		}
		return "ollama"
	}

	m := NewMultiClient(gemini, route)
	m.AddProvider("gemini", gemini)
	m.AddProvider("ollama", ollama)
	m.AddModel("travel-tuned", "gemini")

	tests := []struct {
		model string
		want  string
	}{
		{"gemini-2.0-flash", "gemini"},
		{"qwen3:8b", "ollama"},
		{"travel-tuned", "gemini"},
	}
	for _, tt := range tests {
		resp, err := m.Chat(t.Context(), tt.model, nil, nil)
		if err != nil {
			t.Fatalf("Chat(%s): %v", tt.model, err)
		}
		if resp.Model != tt.want {
			t.Errorf("Chat(%s) went to %s, want %s", tt.model, resp.Model, tt.want)
		}
	}
}

func TestMultiClient_NoProvider(t *testing.T) {
	m := NewMultiClient(nil, nil)
	if _, err := m.Chat(t.Context(), "anything", nil, nil); err == nil {
		t.Error("expected error without providers")
	}
	if err := m.Ping(t.Context()); err == nil {
		t.Error("expected ping error without fallback")
	}
}

func TestRateLimited(t *testing.T) {
	inner := &namedClient{name: "x"}
	r := NewRateLimited(inner, 1, 1) // one call per minute

	if _, err := r.Chat(t.Context(), "m", nil, nil); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.Chat(ctx, "m", nil, nil); err == nil {
		t.Fatal("second call within the minute should wait past the deadline")
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

func TestRateLimited_Unlimited(t *testing.T) {
	inner := &namedClient{name: "x"}
	r := NewRateLimited(inner, 0, 0)
	for i := 0; i < 20; i++ {
		if _, err := r.Chat(t.Context(), "m", nil, nil); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *ChatResponse
		ok   bool
	}{
		{"nil", nil, false},
		{"text", &ChatResponse{Message: Message{Content: "hello"}}, true},
		{"blank", &ChatResponse{Message: Message{Content: " \n"}}, false},
		{"tool call", &ChatResponse{Message: Message{ToolCalls: []ToolCall{{Function: FunctionCall{Name: "get_weather"}}}}}, true},
		{"nameless tool call", &ChatResponse{Message: Message{ToolCalls: []ToolCall{{}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkResponse(tt.resp)
			if (err == nil) != tt.ok {
				t.Errorf("err = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("err = %v, want ErrMalformedResponse", err)
			}
		})
	}
}
