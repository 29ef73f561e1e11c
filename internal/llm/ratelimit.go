package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited throttles Chat calls to a shared request budget. Ping is
// not throttled.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls with the given burst. A
// non-positive perMinute disables the limit.
func NewRateLimited(next Client, perMinute, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Chat waits for a token, then forwards the request.
func (r *RateLimited) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Chat(ctx, model, messages, tools)
}

// Ping forwards to the wrapped client.
func (r *RateLimited) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}
