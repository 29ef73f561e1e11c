// Package api implements the GoTravel HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/nugget/gotravel-agent/internal/agent"
	"github.com/nugget/gotravel-agent/internal/booking"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/connwatch"
	"github.com/nugget/gotravel-agent/internal/metrics"
	"github.com/nugget/gotravel-agent/internal/session"
)

// ServiceName is reported by the root endpoint.
const ServiceName = "GoTravel AI Backend"

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Agent is the conversational core the API drives.
type Agent interface {
	ProcessMessage(ctx context.Context, message, sessionID string, user *agent.UserContext) agent.Result
	SessionInfo(sessionID string) session.Info
	ClearHistory(ctx context.Context, sessionID string) (bool, error)
	Model() string
}

// Bookings creates and looks up reservations.
type Bookings interface {
	Create(ctx context.Context, req booking.Request) (*catalog.Booking, error)
	Lookup(ctx context.Context, reference string) (*catalog.Booking, error)
}

// HealthSource reports the state of watched dependencies.
type HealthSource interface {
	Status() []connwatch.Status
}

// Config holds listener and presentation settings.
type Config struct {
	Address  string
	Port     int
	MaxConns int // 0 is unlimited

	// AllowedOrigins lists browser origins allowed by CORS and the
	// websocket handshake. "*" allows any origin.
	AllowedOrigins []string

	// Debug exposes internal error detail in failed chat responses.
	Debug bool

	// WeatherConfigured reports whether a weather API key is present.
	WeatherConfigured bool
}

// Deps are the collaborators a Server dispatches to. Health and Metrics
// may be nil.
type Deps struct {
	Agent    Agent
	Bookings Bookings
	Health   HealthSource
	Metrics  *metrics.Metrics
}

// Server is the HTTP API server.
type Server struct {
	cfg      Config
	agent    Agent
	bookings Bookings
	health   HealthSource
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
	now      func() time.Time
}

// NewServer creates an API server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		agent:    deps.Agent,
		bookings: deps.Bookings,
		health:   deps.Health,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Handler returns the full route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Chat
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/chat/ws", s.handleChatWS)

	// Sessions
	mux.HandleFunc("POST /api/session/info", s.handleSessionInfo)
	mux.HandleFunc("POST /api/session/clear", s.handleSessionClear)

	// Bookings
	mux.HandleFunc("POST /api/booking", s.handleBookingCreate)
	mux.HandleFunc("GET /api/booking/{reference}", s.handleBookingGet)
	mux.HandleFunc("GET /api/booking/{reference}/qr", s.handleBookingQR)

	// Service info
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/{$}", s.handleRoot)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.withLogging(s.withCORS(mux))
}

// Start listens and serves until the server is shut down. When ctx is
// cancelled the server is shut down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      180 * time.Second, // covers a full agent turn
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server shutdown", "error", err)
		}
	}()

	s.logger.Info("starting API server",
		"address", ln.Addr().String(),
		"max_conns", s.cfg.MaxConns,
	)
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Details   []string  `json:"details,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string) {
	s.writeError(w, status, ErrorResponse{Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	body.Success = false
	body.Timestamp = s.now()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, body, s.logger)
}

func (s *Server) writeOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, v, s.logger)
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeBody reads a JSON request body into v, writing a 400 response
// and returning false when it cannot.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
