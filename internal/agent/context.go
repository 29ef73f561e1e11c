package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nugget/gotravel-agent/internal/prompts"
	"github.com/nugget/gotravel-agent/internal/tools"
)

// ContextProvider contributes a section to the system prompt for one
// turn. An empty string contributes nothing.
type ContextProvider interface {
	GetContext(ctx context.Context, userMessage string) (string, error)
}

// CompositeContextProvider combines multiple context providers.
// Each provider's output is concatenated with blank lines.
type CompositeContextProvider struct {
	providers []ContextProvider
	logger    *slog.Logger
}

// NewCompositeContextProvider creates a composite from multiple providers.
func NewCompositeContextProvider(logger *slog.Logger, providers ...ContextProvider) *CompositeContextProvider {
	if logger == nil {
		logger = slog.Default()
	}
	c := &CompositeContextProvider{logger: logger}
	for _, p := range providers {
		c.Add(p)
	}
	return c
}

// Add appends a provider to the composite.
func (c *CompositeContextProvider) Add(provider ContextProvider) {
	if provider != nil {
		c.providers = append(c.providers, provider)
	}
}

// GetContext calls all providers and combines their output. A failing
// provider is logged and skipped.
func (c *CompositeContextProvider) GetContext(ctx context.Context, userMessage string) (string, error) {
	var parts []string
	for _, p := range c.providers {
		content, err := p.GetContext(ctx, userMessage)
		if err != nil {
			c.logger.Warn("context provider failed", "error", err)
			continue
		}
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// DateProvider tells the model today's date so relative requests such
// as "next weekend" resolve against the server clock.
type DateProvider struct {
	now func() time.Time
}

// NewDateProvider creates a date context provider.
func NewDateProvider() *DateProvider {
	return &DateProvider{now: time.Now}
}

// GetContext implements [ContextProvider].
func (p *DateProvider) GetContext(context.Context, string) (string, error) {
	return "Today is " + p.now().Format("Monday, 2 January 2006") + ".", nil
}

// systemPrompt assembles the base prompt, the user section, and any
// provider output.
func (a *Agent) systemPrompt(ctx context.Context, userMessage string) string {
	prompt := prompts.SystemPrompt(a.cfg.SystemPrompt, tools.UserIDFromContext(ctx))
	if a.context == nil {
		return prompt
	}
	extra, _ := a.context.GetContext(ctx, userMessage)
	if extra == "" {
		return prompt
	}
	return prompt + "\n\n" + extra
}
