// Package weather looks up current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nugget/gotravel-agent/internal/httpkit"
)

var (
	// ErrCityNotFound is returned when the provider does not know the city.
	ErrCityNotFound = errors.New("city not found")

	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("weather API key not configured")
)

// Conditions is a current-weather report in metric units.
type Conditions struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"`
	Pressure    int     `json:"pressure"`
}

// Client queries the OpenWeatherMap current weather endpoint.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default httpkit client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache stores successful lookups in cache for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = httpkit.NewClient(httpkit.WithTimeout(d), httpkit.WithRetry(1, 500*time.Millisecond)) }
}

// New creates a client. An empty apiKey yields a client whose lookups
// fail with [ErrNotConfigured].
func New(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = httpkit.NewClient(httpkit.WithTimeout(10*time.Second), httpkit.WithRetry(1, 500*time.Millisecond))
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openweathermap.org"
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// owmResponse is the subset of the current weather payload we use.
type owmResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Current returns current conditions for city.
func (c *Client) Current(ctx context.Context, city string) (*Conditions, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, fmt.Errorf("%w: empty city name", ErrCityNotFound)
	}

	key := cacheKey(city)
	if c.cache != nil {
		if cond, ok := c.cache.Get(ctx, key); ok {
			c.logger.Debug("weather cache hit", "city", city)
			return cond, nil
		}
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	reqURL := c.baseURL + "/data/2.5/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}
	if err := httpkit.CheckStatus("openweathermap", resp); err != nil {
		return nil, err
	}

	var raw owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	cond := &Conditions{
		City:        raw.Name,
		Country:     raw.Sys.Country,
		Temperature: raw.Main.Temp,
		FeelsLike:   raw.Main.FeelsLike,
		Humidity:    raw.Main.Humidity,
		WindSpeed:   raw.Wind.Speed,
		Pressure:    raw.Main.Pressure,
	}
	if len(raw.Weather) > 0 {
		cond.Description = raw.Weather[0].Description
	}

	c.logger.Debug("weather fetched",
		"city", city,
		"resolved", cond.City,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if c.cache != nil && c.cacheTTL > 0 {
		c.cache.Set(ctx, key, cond, c.cacheTTL)
	}
	return cond, nil
}

func cacheKey(city string) string {
	return "gotravel:weather:" + strings.ToLower(city)
}
