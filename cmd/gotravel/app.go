package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nugget/gotravel-agent/internal/agent"
	"github.com/nugget/gotravel-agent/internal/api"
	"github.com/nugget/gotravel-agent/internal/booking"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/config"
	"github.com/nugget/gotravel-agent/internal/connwatch"
	"github.com/nugget/gotravel-agent/internal/llm"
	"github.com/nugget/gotravel-agent/internal/metrics"
	"github.com/nugget/gotravel-agent/internal/mqtt"
	"github.com/nugget/gotravel-agent/internal/session"
	"github.com/nugget/gotravel-agent/internal/tools"
	"github.com/nugget/gotravel-agent/internal/usage"
	"github.com/nugget/gotravel-agent/internal/weather"
)

// weatherProbeCity is looked up by the weather_api health probe. With
// caching enabled most probes are served from the cache.
const weatherProbeCity = "Dhaka"

// app holds every long-lived component. serve and ask build the same
// graph; serve additionally starts the background workers and the API.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	catalog   *catalog.SQLStore
	weather   *weather.Client
	bookings  *booking.Service
	sessions  *session.Store
	llm       llm.Client
	agent     *agent.Agent
	metrics   *metrics.Metrics
	usage     *usage.Store
	publisher *mqtt.Publisher

	closers []func() error
}

// newApp wires the component graph. On error everything opened so far
// is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	a.catalog, err = catalog.Open(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN, logger.With("component", "catalog"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.catalog.Close)
	logger.Info("catalog opened", "driver", cfg.Catalog.Driver)

	a.weather, err = a.newWeather(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.MQTT.Configured() {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			instanceID, err := mqtt.LoadOrCreateInstanceID(cfg.DataDir)
			if err != nil {
				return nil, err
			}
			clientID = mqtt.ClientID(instanceID)
		}
		a.publisher = mqtt.New(cfg.MQTT, clientID, mqttStats{a}, nil, logger.With("component", "mqtt"))
	}

	a.bookings = booking.NewService(a.catalog, &bookingNotifier{metrics: a.metrics, publisher: a.publisher}, logger.With("component", "booking"))

	registry, err := tools.NewRegistry(logger.With("component", "tools"), tools.Travel(tools.Deps{
		Catalog:  a.catalog,
		Weather:  a.weather,
		Bookings: a.bookings,
	})...)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	a.sessions = session.NewStore(session.Config{
		IdleTTL:     cfg.Sessions.IdleTTL(),
		MaxSessions: cfg.Sessions.MaxSessions,
	}, logger.With("component", "sessions"))
	a.metrics.TrackSessions(a.sessions.Len)

	a.llm, err = createLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Usage.Enabled {
		a.usage, err = usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
		if err != nil {
			return nil, fmt.Errorf("open usage store: %w", err)
		}
		a.closers = append(a.closers, a.usage.Close)
	}

	a.agent = agent.New(agent.Config{
		Model:         cfg.Models.Default,
		MaxIterations: cfg.Agent.MaxIterations,
		TurnTimeout:   cfg.Agent.TurnTimeout(),
		ParallelTools: cfg.Agent.ParallelTools,
		SystemPrompt:  cfg.Agent.SystemPrompt,
	}, a.llm, registry, a.sessions,
		agent.WithLogger(logger.With("component", "agent")),
		agent.WithContextProvider(agent.NewCompositeContextProvider(logger, agent.NewDateProvider())),
		agent.WithObserver(a.observeTurn),
	)

	logger.Info("agent ready",
		"model", cfg.Models.Default,
		"provider", cfg.ProviderFor(cfg.Models.Default),
		"tools", len(registry.Names()),
		"max_iterations", cfg.Agent.MaxIterations,
	)
	return a, nil
}

func (a *app) newWeather(ctx context.Context) (*weather.Client, error) {
	wc := a.cfg.Weather
	opts := []weather.Option{
		weather.WithLogger(a.logger.With("component", "weather")),
		weather.WithTimeout(time.Duration(wc.TimeoutSec) * time.Second),
	}
	if wc.CacheTTLSec > 0 {
		ttl := time.Duration(wc.CacheTTLSec) * time.Second
		var cache weather.Cache = weather.NewMemoryCache()
		if wc.RedisAddr != "" {
			rc, err := weather.DialRedis(ctx, wc.RedisAddr, a.logger)
			if err != nil {
				return nil, fmt.Errorf("connect weather cache redis %s: %w", wc.RedisAddr, err)
			}
			a.closers = append(a.closers, rc.Close)
			cache = rc
			a.logger.Info("weather cache using redis", "addr", wc.RedisAddr)
		}
		opts = append(opts, weather.WithCache(cache, ttl))
	}
	if !wc.Configured() {
		a.logger.Warn("weather API key not set; get_weather will report it is unavailable")
	}
	return weather.New(wc.APIKey, wc.BaseURL, opts...), nil
}

// observeTurn fans a finished turn out to usage, metrics, and the daily
// MQTT counters.
func (a *app) observeTurn(s agent.TurnStats) {
	a.metrics.ObserveTurn(string(s.Outcome), s.Model, s.Tools, s.InputTokens, s.OutputTokens, s.Elapsed)
	if a.publisher != nil {
		a.publisher.Daily().OnTurn(s.InputTokens, s.OutputTokens)
	}
	if a.usage == nil {
		return
	}
	rec := usage.Record{
		SessionID:    s.SessionID,
		Model:        s.Model,
		Provider:     a.cfg.ProviderFor(s.Model),
		InputTokens:  s.InputTokens,
		OutputTokens: s.OutputTokens,
		CostUSD:      usage.ComputeCost(s.Model, s.InputTokens, s.OutputTokens, a.cfg.Usage.Pricing),
		Iterations:   s.Iterations,
		ToolCalls:    s.ToolCalls,
		Outcome:      string(s.Outcome),
		ElapsedMS:    s.Elapsed.Milliseconds(),
	}
	// Observers run after the turn's context may have expired.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.usage.Record(ctx, rec); err != nil {
		a.logger.Warn("usage record failed", "session", s.SessionID, "error", err)
	}
}

// watch registers the dependency health probes reported by /api/health.
func (a *app) watch(ctx context.Context) *connwatch.Manager {
	m := connwatch.NewManager(a.logger)

	m.Watch(ctx, connwatch.Config{
		Name:    api.ServiceDatabase,
		Probe:   a.catalog.Ping,
		Backoff: connwatch.DefaultBackoff(),
	})
	m.Watch(ctx, connwatch.Config{
		Name:    api.ServiceAIModel,
		Probe:   a.llm.Ping,
		Backoff: connwatch.DefaultBackoff(),
	})
	if a.weather.Configured() {
		m.Watch(ctx, connwatch.Config{
			Name: api.ServiceWeather,
			Probe: func(ctx context.Context) error {
				_, err := a.weather.Current(ctx, weatherProbeCity)
				return err
			},
			Backoff: connwatch.Backoff{
				InitialDelay: 30 * time.Second,
				MaxDelay:     15 * time.Minute,
				PollInterval: 15 * time.Minute,
			},
		})
	}
	return m
}

// schedule starts the cron jobs for session eviction and usage pruning.
func (a *app) schedule() (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(a.cfg.Sessions.SweepSchedule, func() {
		if n := a.sessions.Sweep(); n > 0 {
			a.logger.Info("idle sessions evicted", "count", n, "remaining", a.sessions.Len())
		}
	}); err != nil {
		return nil, fmt.Errorf("sessions.sweep_schedule %q: %w", a.cfg.Sessions.SweepSchedule, err)
	}

	if a.usage != nil {
		retention := time.Duration(a.cfg.Usage.RetentionDays) * 24 * time.Hour
		if _, err := c.AddFunc(a.cfg.Usage.PruneSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, err := a.usage.Prune(ctx, retention)
			if err != nil {
				a.logger.Warn("usage prune failed", "error", err)
				return
			}
			if n > 0 {
				a.logger.Info("usage records pruned", "count", n, "retention_days", a.cfg.Usage.RetentionDays)
			}
		}); err != nil {
			return nil, fmt.Errorf("usage.prune_schedule %q: %w", a.cfg.Usage.PruneSchedule, err)
		}
	}

	c.Start()
	return c, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// createLLMClient builds a multi-provider client. Each configured
// provider is registered; models are routed by explicit mapping first
// and then by name (see [config.Config.ProviderFor]). The default
// model's provider must be usable.
func createLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	opts := llm.Options{
		Temperature: cfg.Models.Temperature,
		MaxTokens:   cfg.Models.MaxTokens,
	}
	providers := map[string]llm.Client{
		"ollama": llm.NewOllamaClient(cfg.Models.OllamaURL, opts, logger),
	}

	if cfg.Gemini.APIKey != "" {
		g, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Models.Default, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		providers["gemini"] = g
	}
	if cfg.Anthropic.APIKey != "" {
		providers["anthropic"] = llm.NewAnthropicClient(cfg.Anthropic.APIKey, opts, logger)
	}
	if cfg.OpenAI.APIKey != "" {
		providers["openai"] = llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, opts, logger)
	}

	defaultProvider := cfg.ProviderFor(cfg.Models.Default)
	fallback, ok := providers[defaultProvider]
	if !ok {
		return nil, fmt.Errorf("default model %q needs the %s provider, which is not configured", cfg.Models.Default, defaultProvider)
	}

	multi := llm.NewMultiClient(fallback, cfg.ProviderFor)
	for name, client := range providers {
		multi.AddProvider(name, client)
	}
	for _, m := range cfg.Models.Available {
		multi.AddModel(m.Name, m.Provider)
	}
	logger.Info("LLM client initialized", "default_model", cfg.Models.Default, "default_provider", defaultProvider)

	if cfg.RateLimit.RequestsPerMinute > 0 {
		logger.Info("LLM rate limit enabled", "per_minute", cfg.RateLimit.RequestsPerMinute, "burst", cfg.RateLimit.Burst)
		return llm.NewRateLimited(multi, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst), nil
	}
	return multi, nil
}

// bookingNotifier counts bookings and forwards them to MQTT. Bookings
// made inside an agent turn carry a session id in their context.
type bookingNotifier struct {
	metrics   *metrics.Metrics
	publisher *mqtt.Publisher
}

func (n *bookingNotifier) BookingCreated(ctx context.Context, b catalog.Booking) {
	source := "api"
	if tools.SessionIDFromContext(ctx) != "" {
		source = "agent"
	}
	n.metrics.ObserveBooking(b.Kind, source)
	if n.publisher != nil {
		n.publisher.BookingCreated(ctx, b)
	}
}

// mqttStats adapts the app to [mqtt.StatsSource].
type mqttStats struct{ a *app }

func (s mqttStats) ActiveSessions() int  { return s.a.sessions.Len() }
func (s mqttStats) DefaultModel() string { return s.a.cfg.Models.Default }
