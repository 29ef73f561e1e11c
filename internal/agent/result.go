package agent

import (
	"time"

	"github.com/nugget/gotravel-agent/internal/prompts"
)

// ToolUse is one tool call made during a turn: the tool name and the
// arguments the model supplied.
type ToolUse struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Result is the outcome of one turn.
type Result struct {
	Success      bool      `json:"success"`
	Response     string    `json:"response"`
	SessionID    string    `json:"session_id"`
	ToolsUsed    []ToolUse `json:"tools_used"`
	MessageCount int       `json:"message_count"`

	// Err is the internal failure detail. It is logged, and shown to
	// API callers only in debug mode.
	Err error `json:"-"`
	// Retryable is set when the turn failed on a timeout or a busy
	// session and the same request may succeed later.
	Retryable bool `json:"-"`
}

// assemble projects a finished turn into a Result.
func assemble(sessionID, answer string, used []ToolUse, messageCount int, err error) Result {
	if used == nil {
		used = []ToolUse{}
	}
	r := Result{
		Success:      err == nil,
		Response:     answer,
		SessionID:    sessionID,
		ToolsUsed:    used,
		MessageCount: messageCount,
	}
	if err != nil {
		r.Response = prompts.TurnFailedApology
		r.Err = err
		r.Retryable = outcomeFor(err) == OutcomeTimeout
	}
	return r
}

// Outcome classifies how a turn ended.
type Outcome string

// Turn outcomes.
const (
	OutcomeDone    Outcome = "done"
	OutcomeCapped  Outcome = "capped"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// TurnStats summarizes a turn for observers such as usage recording
// and metrics.
type TurnStats struct {
	SessionID    string
	Model        string
	Outcome      Outcome
	Iterations   int
	Rounds       int
	ToolCalls    int
	Tools        []string // names in call order, duplicates kept
	InputTokens  int
	OutputTokens int
	Elapsed      time.Duration
}

func (t *turn) stats(sessionID, configured string, elapsed time.Duration) TurnStats {
	model := t.model
	if model == "" {
		model = configured
	}
	outcome := t.outcome
	if outcome == "" {
		outcome = OutcomeFailed
	}
	return TurnStats{
		SessionID:    sessionID,
		Model:        model,
		Outcome:      outcome,
		Iterations:   t.iterations,
		Rounds:       t.rounds,
		ToolCalls:    len(t.used),
		Tools:        toolNames(t.used),
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		Elapsed:      elapsed,
	}
}
