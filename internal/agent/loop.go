package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nugget/gotravel-agent/internal/llm"
	"github.com/nugget/gotravel-agent/internal/prompts"
	"github.com/nugget/gotravel-agent/internal/session"
	"github.com/nugget/gotravel-agent/internal/tools"
)

// turn is the state of one ProcessMessage call.
type turn struct {
	agent     *Agent
	log       *slog.Logger
	sessionID string

	messages []llm.Message
	used     []ToolUse

	iterations int // model calls, including retries
	rounds     int // tool dispatch rounds
	lastText   string
	answer     string
	outcome    Outcome

	model        string
	inputTokens  int
	outputTokens int
}

// run drives THINKING and TOOL_DISPATCH until the model answers or the
// iteration cap is reached. It returns the final answer text.
func (t *turn) run(ctx context.Context) (string, error) {
	a := t.agent
	defs := a.tools.ChatTools()

	var lastErr error
	for t.iterations < a.cfg.MaxIterations {
		resp, err := t.think(ctx, defs)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("model call: %w", ctx.Err())
			}
			lastErr = err
			t.log.Warn("model reply unusable, retrying",
				"iteration", t.iterations,
				"malformed", errors.Is(err, llm.ErrMalformedResponse),
				"error", err,
			)
			t.nudge(prompts.MalformedResponseNudge)
			continue
		}
		lastErr = nil

		text := strings.TrimSpace(resp.Message.Content)
		if text != "" {
			t.lastText = text
		}
		if len(resp.Message.ToolCalls) == 0 {
			t.outcome = OutcomeDone
			return text, nil
		}

		if err := t.dispatch(ctx, resp.Message); err != nil {
			return "", err
		}
	}

	// The cap's best-effort answer is for a model that kept asking for
	// tools. A model that stopped replying fails the turn.
	if lastErr != nil {
		return "", fmt.Errorf("no usable reply after %d attempts: %w", t.iterations, lastErr)
	}
	t.outcome = OutcomeCapped
	return t.bestEffort(ctx, defs)
}

// think makes one model call.
func (t *turn) think(ctx context.Context, defs []map[string]any) (*llm.ChatResponse, error) {
	a := t.agent
	t.iterations++
	t.log.Debug("calling model",
		"model", a.cfg.Model,
		"iteration", t.iterations,
		"messages", len(t.messages),
	)
	resp, err := a.llm.Chat(ctx, a.cfg.Model, t.messages, defs)
	if err != nil {
		return nil, err
	}
	t.model = resp.Model
	t.inputTokens += resp.InputTokens
	t.outputTokens += resp.OutputTokens
	return resp, nil
}

// nudge appends a corrective user message unless the conversation
// already ends with it.
func (t *turn) nudge(text string) {
	if n := len(t.messages); n > 0 && t.messages[n-1].Role == llm.RoleUser && t.messages[n-1].Content == text {
		return
	}
	t.messages = append(t.messages, llm.Message{Role: llm.RoleUser, Content: text})
}

// dispatch runs every tool call in reply and records one observation
// per call in the order the model requested them.
func (t *turn) dispatch(ctx context.Context, reply llm.Message) error {
	a := t.agent
	t.rounds++

	calls := make([]llm.ToolCall, len(reply.ToolCalls))
	copy(calls, reply.ToolCalls)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = newCallID()
		}
		if calls[i].Function.Arguments == nil {
			calls[i].Function.Arguments = map[string]any{}
		}
	}

	results := make([]tools.Result, len(calls))
	if a.cfg.ParallelTools && len(calls) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, call := range calls {
			g.Go(func() error {
				results[i] = t.invoke(gctx, call)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, call := range calls {
			results[i] = t.invoke(ctx, call)
		}
	}

	t.messages = append(t.messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   reply.Content,
		ToolCalls: calls,
	})
	for i, call := range calls {
		observation := results[i].JSON()
		_, err := a.sessions.Append(t.sessionID, session.Message{
			Role:    session.RoleToolObservation,
			Content: observation,
			Tool: &session.ToolObservation{
				Name:      call.Function.Name,
				CallID:    call.ID,
				Arguments: call.Function.Arguments,
				Round:     t.rounds,
				Success:   results[i].Success,
			},
		})
		if err != nil {
			return fmt.Errorf("append observation: %w", err)
		}
		t.used = append(t.used, ToolUse{Tool: call.Function.Name, Input: call.Function.Arguments})
		t.messages = append(t.messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    observation,
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
		})
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tool dispatch: %w", err)
	}
	return nil
}

func (t *turn) invoke(ctx context.Context, call llm.ToolCall) tools.Result {
	t.log.Debug("invoking tool",
		"tool", call.Function.Name,
		"call_id", call.ID,
		"round", t.rounds,
	)
	// Registry errors are already folded into the result envelope.
	res, _ := t.agent.tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
	return res
}

// bestEffort asks for a final answer after the cap. Tool definitions
// are still sent because some providers reject tool history without
// them; any tool calls in the reply are ignored.
func (t *turn) bestEffort(ctx context.Context, defs []map[string]any) (string, error) {
	t.log.Info("iteration cap reached",
		"max_iterations", t.agent.cfg.MaxIterations,
		"rounds", t.rounds,
	)
	t.messages = append(t.messages, llm.Message{
		Role:    llm.RoleUser,
		Content: prompts.IterationCapPrompt(toolNames(t.used)),
	})

	resp, err := t.think(ctx, defs)
	switch {
	case err == nil && strings.TrimSpace(resp.Message.Content) != "":
		return strings.TrimSpace(resp.Message.Content), nil
	case ctx.Err() != nil:
		return "", fmt.Errorf("best-effort answer: %w", ctx.Err())
	case err != nil:
		t.log.Warn("best-effort answer failed", "error", err)
	}
	if t.lastText != "" {
		return t.lastText, nil
	}
	return prompts.EmptyResponseFallback, nil
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func toolNames(used []ToolUse) []string {
	names := make([]string, len(used))
	for i, u := range used {
		names[i] = u.Tool
	}
	return names
}
