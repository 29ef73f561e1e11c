// Package agent implements the tool-calling conversation loop.
//
// One [Agent.ProcessMessage] call is one turn: the user's message is
// appended to the session, the model is asked for a next action, any
// requested tools are run through the registry, and the loop repeats
// until the model answers in plain text or the iteration cap is reached.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nugget/gotravel-agent/internal/llm"
	"github.com/nugget/gotravel-agent/internal/session"
	"github.com/nugget/gotravel-agent/internal/tools"
)

const tracerName = "github.com/nugget/gotravel-agent/internal/agent"

// DefaultMaxIterations bounds model calls per turn when Config leaves
// MaxIterations unset.
const DefaultMaxIterations = 5

// Config controls a single agent.
type Config struct {
	Model         string
	MaxIterations int
	// TurnTimeout bounds a whole turn, including the wait for another
	// turn on the same session. Zero disables the limit.
	TurnTimeout   time.Duration
	ParallelTools bool
	// SystemPrompt replaces the built-in prompt when non-empty.
	SystemPrompt string
}

// UserContext identifies the signed-in user, if any.
type UserContext struct {
	UserID string
}

// Agent runs turns against a session store. It is safe for concurrent
// use; turns on the same session are serialized.
type Agent struct {
	cfg       Config
	llm       llm.Client
	tools     *tools.Registry
	sessions  *session.Store
	context   ContextProvider
	observers []func(TurnStats)
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures an [Agent].
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithContextProvider adds per-turn system prompt context.
func WithContextProvider(p ContextProvider) Option {
	return func(a *Agent) { a.context = p }
}

// WithObserver registers fn to receive stats after every turn. Observers
// run synchronously on the turn's goroutine and must not block.
func WithObserver(fn func(TurnStats)) Option {
	return func(a *Agent) {
		if fn != nil {
			a.observers = append(a.observers, fn)
		}
	}
}

// New creates an agent.
func New(cfg Config, client llm.Client, registry *tools.Registry, store *session.Store, opts ...Option) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	a := &Agent{
		cfg:      cfg,
		llm:      client,
		tools:    registry,
		sessions: store,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewSessionID returns a fresh session identifier of the form
// session_<12 hex digits>.
func NewSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ProcessMessage runs one turn. An empty sessionID starts a new session.
// The returned Result is always populated; Result.Err carries the
// internal failure detail.
func (a *Agent) ProcessMessage(ctx context.Context, message, sessionID string, user *UserContext) Result {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	if a.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.TurnTimeout)
		defer cancel()
	}

	ctx, span := a.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("llm.model", a.cfg.Model),
	))
	defer span.End()

	ctx = tools.WithSessionID(ctx, sessionID)
	if user != nil && user.UserID != "" {
		ctx = tools.WithUserID(ctx, user.UserID)
	}

	start := time.Now()
	log := a.logger.With("session", sessionID)
	log.Info("processing message", "length", len(message))

	t, err := a.runTurn(ctx, log, sessionID, message)
	stats := t.stats(sessionID, a.cfg.Model, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("turn failed",
			"error", err,
			"iterations", t.iterations,
			"rounds", t.rounds,
			"elapsed", stats.Elapsed.Round(time.Millisecond),
		)
	} else {
		span.SetAttributes(
			attribute.Int("agent.iterations", t.iterations),
			attribute.Int("agent.tool_calls", len(t.used)),
		)
		log.Info("turn completed",
			"outcome", stats.Outcome,
			"iterations", t.iterations,
			"tools", toolNames(t.used),
			"input_tokens", t.inputTokens,
			"output_tokens", t.outputTokens,
			"elapsed", stats.Elapsed.Round(time.Millisecond),
		)
	}
	for _, fn := range a.observers {
		fn(stats)
	}

	return assemble(sessionID, t.answer, t.used, a.sessions.Info(sessionID).MessageCount, err)
}

// runTurn holds the session lease for the whole turn. The returned turn
// is never nil.
func (a *Agent) runTurn(ctx context.Context, log *slog.Logger, sessionID, message string) (*turn, error) {
	t := &turn{agent: a, log: log, sessionID: sessionID}

	release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		t.outcome = outcomeFor(err)
		return t, fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	history := a.sessions.Messages(sessionID)
	if _, err := a.sessions.Append(sessionID, session.Message{Role: session.RoleUser, Content: message}); err != nil {
		t.outcome = OutcomeFailed
		return t, fmt.Errorf("append user message: %w", err)
	}
	t.messages = buildMessages(a.systemPrompt(ctx, message), history, message)

	answer, err := t.run(ctx)
	if err != nil {
		t.outcome = outcomeFor(err)
		return t, err
	}
	t.answer = answer

	if _, err := a.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: answer}); err != nil {
		t.outcome = OutcomeFailed
		return t, fmt.Errorf("append answer: %w", err)
	}
	return t, nil
}

// SessionInfo reports whether the session exists and its message count.
func (a *Agent) SessionInfo(sessionID string) session.Info {
	return a.sessions.Info(sessionID)
}

// ClearHistory empties the session's history. It returns false if the
// session does not exist. A turn in flight on the session finishes
// first; the wait is bounded by the turn timeout.
func (a *Agent) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	if a.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.TurnTimeout)
		defer cancel()
	}
	cleared, err := a.sessions.Clear(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("clear history: %w", err)
	}
	if cleared {
		a.logger.Info("session history cleared", "session", sessionID)
	}
	return cleared, nil
}

// Model returns the model this agent asks for.
func (a *Agent) Model() string {
	return a.cfg.Model
}

func outcomeFor(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, session.ErrSessionBusy) {
		return OutcomeTimeout
	}
	return OutcomeFailed
}
