package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nugget/gotravel-agent/internal/agent"
	"github.com/nugget/gotravel-agent/internal/booking"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/connwatch"
	"github.com/nugget/gotravel-agent/internal/metrics"
	"github.com/nugget/gotravel-agent/internal/session"
)

type turnCall struct {
	message   string
	sessionID string
	user      *agent.UserContext
}

type fakeAgent struct {
	mu      sync.Mutex
	calls   []turnCall
	result  func(message, sessionID string) agent.Result
	cleared  map[string]bool
	clearErr error
	info     map[string]session.Info
}

func (f *fakeAgent) ProcessMessage(_ context.Context, message, sessionID string, user *agent.UserContext) agent.Result {
	f.mu.Lock()
	f.calls = append(f.calls, turnCall{message, sessionID, user})
	f.mu.Unlock()
	if sessionID == "" {
		sessionID = "session_generated0"
	}
	if f.result != nil {
		return f.result(message, sessionID)
	}
	return agent.Result{
		Success:      true,
		Response:     "**Hotel Sea Crown** in Cox's Bazar",
		SessionID:    sessionID,
		ToolsUsed:    []agent.ToolUse{{Tool: "search_hotels", Input: map[string]any{"location": "Cox's Bazar"}}},
		MessageCount: 4,
	}
}

func (f *fakeAgent) SessionInfo(id string) session.Info {
	if info, ok := f.info[id]; ok {
		return info
	}
	return session.Info{SessionID: id}
}

func (f *fakeAgent) ClearHistory(_ context.Context, id string) (bool, error) {
	if f.clearErr != nil {
		return false, f.clearErr
	}
	return f.cleared[id], nil
}

func (f *fakeAgent) Model() string { return "gemini-2.0-flash" }

type fakeBookings struct {
	created []booking.Request
	err     error
	stored  map[string]*catalog.Booking
}

func (f *fakeBookings) Create(_ context.Context, req booking.Request) (*catalog.Booking, error) {
	f.created = append(f.created, req)
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.Booking{
		Reference:   "GT-20260314-AB12CD",
		Kind:        req.Kind,
		ItemID:      req.ItemID,
		TotalAmount: 24000,
		Currency:    "BDT",
	}, nil
}

func (f *fakeBookings) Lookup(_ context.Context, ref string) (*catalog.Booking, error) {
	if b, ok := f.stored[ref]; ok {
		return b, nil
	}
	return nil, catalog.ErrNotFound
}

type fakeHealth []connwatch.Status

func (f fakeHealth) Status() []connwatch.Status { return f }

type testEnv struct {
	server   *Server
	agent    *fakeAgent
	bookings *fakeBookings
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		agent:    &fakeAgent{cleared: map[string]bool{}, info: map[string]session.Info{}},
		bookings: &fakeBookings{stored: map[string]*catalog.Booking{}},
		metrics:  metrics.New(),
	}
	env.server = NewServer(cfg, Deps{
		Agent:    env.agent,
		Bookings: env.bookings,
		Metrics:  env.metrics,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.server.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rec.Body.String())
	}
	return v
}

func TestChat_Success(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/chat",
		`{"message":"Find hotels in Cox's Bazar","session_id":"session_abc","user_id":"u-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[ChatResponse](t, rec)
	if !resp.Success || resp.SessionID != "session_abc" || resp.MessageCount != 4 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.ToolsUsed) != 1 || resp.ToolsUsed[0].Tool != "search_hotels" {
		t.Errorf("tools_used = %+v", resp.ToolsUsed)
	}
	if resp.ResponseHTML != "" {
		t.Errorf("html rendered without being asked: %q", resp.ResponseHTML)
	}

	call := env.agent.calls[0]
	if call.user == nil || call.user.UserID != "u-1" {
		t.Errorf("user context = %+v", call.user)
	}
}

func TestChat_NoUserContext(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/chat", `{"message":"hello"}`)
	if env.agent.calls[0].user != nil {
		t.Errorf("user context = %+v, want nil", env.agent.calls[0].user)
	}
}

func TestChat_HTMLFormat(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/chat?format=html", `{"message":"hotels please"}`)

	resp := decode[ChatResponse](t, rec)
	if !strings.Contains(resp.ResponseHTML, "<strong>Hotel Sea Crown</strong>") {
		t.Errorf("response_html = %q", resp.ResponseHTML)
	}
	if resp.Response != "**Hotel Sea Crown** in Cox's Bazar" {
		t.Errorf("markdown response altered: %q", resp.Response)
	}
}

func TestChat_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty message", `{"message":""}`, http.StatusUnprocessableEntity},
		{"whitespace message", `{"message":"   \n"}`, http.StatusUnprocessableEntity},
		{"too long", `{"message":"` + strings.Repeat("a", MaxMessageLength+1) + `"}`, http.StatusUnprocessableEntity},
		{"bad format", `{"message":"hi","format":"pdf"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"message":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			rec := env.do(t, http.MethodPost, "/api/chat", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if resp := decode[ErrorResponse](t, rec); resp.Success || resp.Error == "" {
				t.Errorf("error body = %+v", resp)
			}
			if len(env.agent.calls) != 0 {
				t.Error("agent called for invalid request")
			}
		})
	}
}

func TestChat_MaxLengthCountsCharacters(t *testing.T) {
	env := newTestEnv(t, Config{})
	msg := strings.Repeat("ঢ", MaxMessageLength) // multibyte, exactly at the limit
	body, _ := json.Marshal(ChatRequest{Message: msg})
	rec := env.do(t, http.MethodPost, "/api/chat", string(body))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestChat_Failure(t *testing.T) {
	tests := []struct {
		name      string
		retryable bool
		debug     bool
		want      int
		wantError string
	}{
		{"failed", false, false, http.StatusInternalServerError, "I apologize"},
		{"timeout", true, false, http.StatusServiceUnavailable, "I apologize"},
		{"debug detail", false, true, http.StatusInternalServerError, "provider exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{Debug: tt.debug})
			env.agent.result = func(_, sessionID string) agent.Result {
				return agent.Result{
					Response:  "I apologize, but I encountered an error processing your request. Please try again.",
					SessionID: sessionID,
					Err:       errors.New("provider exploded"),
					Retryable: tt.retryable,
				}
			}
			rec := env.do(t, http.MethodPost, "/api/chat", `{"message":"hi","session_id":"session_x"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Success || resp.SessionID != "session_x" || !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("error body = %+v", resp)
			}
			if !tt.debug && strings.Contains(resp.Error, "exploded") {
				t.Error("internal error leaked without debug")
			}
		})
	}
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.agent.info["session_a"] = session.Info{SessionID: "session_a", Exists: true, MessageCount: 6}
	env.agent.cleared["session_a"] = true

	info := decode[SessionInfoResponse](t, env.do(t, http.MethodPost, "/api/session/info", `{"session_id":"session_a"}`))
	if !info.Exists || info.MessageCount != 6 || info.SessionID != "session_a" {
		t.Errorf("info = %+v", info)
	}

	missing := decode[SessionInfoResponse](t, env.do(t, http.MethodPost, "/api/session/info", `{"session_id":"nope"}`))
	if missing.Exists || missing.MessageCount != 0 || missing.SessionID != "nope" {
		t.Errorf("missing info = %+v", missing)
	}

	cleared := decode[ClearHistoryResponse](t, env.do(t, http.MethodPost, "/api/session/clear", `{"session_id":"session_a"}`))
	if !cleared.Success || cleared.Message != "Chat history cleared successfully" {
		t.Errorf("clear = %+v", cleared)
	}

	notFound := decode[ClearHistoryResponse](t, env.do(t, http.MethodPost, "/api/session/clear", `{"session_id":"nope"}`))
	if notFound.Success || notFound.Message != "Session not found" {
		t.Errorf("clear missing = %+v", notFound)
	}

	if rec := env.do(t, http.MethodPost, "/api/session/info", `{}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing session_id status = %d", rec.Code)
	}

	env.agent.clearErr = fmt.Errorf("clear history: %w", session.ErrSessionBusy)
	rec := env.do(t, http.MethodPost, "/api/session/clear", `{"session_id":"session_a"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("busy clear status = %d, want 503", rec.Code)
	}
	if busy := decode[ErrorResponse](t, rec); busy.Success || busy.SessionID != "session_a" {
		t.Errorf("busy clear = %+v", busy)
	}
}

func TestBookingCreate(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/booking", `{
		"booking_type": "package",
		"item_id": "pkg-1",
		"guest_name": "Rahim Uddin",
		"guest_email": "rahim@example.com",
		"guest_phone": "+8801711000000",
		"total_participants": 2
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[BookingResponse](t, rec)
	if !resp.Success || resp.Message != "Booking created successfully" || resp.BookingReference != "GT-20260314-AB12CD" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.BookingType != "package" || resp.TotalAmount != 24000 || resp.Currency != "BDT" {
		t.Errorf("resp = %+v", resp)
	}
	if got := env.bookings.created[0]; got.Participants != 2 || got.GuestEmail != "rahim@example.com" {
		t.Errorf("request = %+v", got)
	}
}

func TestBookingCreate_Errors(t *testing.T) {
	tests := []struct {
		name string
		kind string
		err  error
		want int
	}{
		{"invalid type", "flight", nil, http.StatusBadRequest},
		{"validation", "hotel", &booking.ValidationError{Problems: []string{"guest_email must be a valid email address"}}, http.StatusUnprocessableEntity},
		{"not found", "hotel", &booking.ItemNotFoundError{Kind: "hotel", ItemID: "h-9"}, http.StatusNotFound},
		{"store failure", "package", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{})
			env.bookings.err = tt.err
			body, _ := json.Marshal(map[string]any{"booking_type": tt.kind, "item_id": "h-9"})
			rec := env.do(t, http.MethodPost, "/api/booking", string(body))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Success {
				t.Error("success on failure")
			}
			if tt.want == http.StatusNotFound && resp.Error != "Hotel with ID h-9 not found" {
				t.Errorf("error = %q", resp.Error)
			}
			if tt.want == http.StatusUnprocessableEntity && len(resp.Details) != 1 {
				t.Errorf("details = %v", resp.Details)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(resp.Error, "disk") {
				t.Errorf("internal detail leaked: %q", resp.Error)
			}
		})
	}
}

func TestBookingGet(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.bookings.stored["GT-1"] = &catalog.Booking{
		Reference:  "GT-1",
		Kind:       "hotel",
		GuestName:  "Karim",
		GuestEmail: "karim@example.com",
		GuestPhone: "01711000000",
		Currency:   "BDT",
	}

	rec := env.do(t, http.MethodGet, "/api/booking/GT-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "karim@example.com") || strings.Contains(rec.Body.String(), "01711000000") {
		t.Errorf("contact details exposed: %s", rec.Body)
	}
	view := decode[BookingView](t, rec)
	if view.BookingReference != "GT-1" || view.GuestName != "Karim" {
		t.Errorf("view = %+v", view)
	}

	if rec := env.do(t, http.MethodGet, "/api/booking/GT-404", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing booking status = %d", rec.Code)
	}
}

func TestBookingQR(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.bookings.stored["GT-1"] = &catalog.Booking{Reference: "GT-1"}

	rec := env.do(t, http.MethodGet, "/api/booking/GT-1/qr?size=9999", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	if rec := env.do(t, http.MethodGet, "/api/booking/nope/qr", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing booking status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		weather bool
		status  fakeHealth
		want    string
		states  map[string]string
	}{
		{
			name:    "all good",
			weather: true,
			status: fakeHealth{
				{Name: ServiceDatabase, Checked: true, Ready: true},
				{Name: ServiceAIModel, Checked: true, Ready: true},
				{Name: ServiceWeather, Checked: true, Ready: true},
			},
			want:   "healthy",
			states: map[string]string{ServiceDatabase: StateConnected, ServiceAIModel: StateReady, ServiceWeather: StateAvailable},
		},
		{
			name:    "weather unchecked counts as configured",
			weather: true,
			status: fakeHealth{
				{Name: ServiceDatabase, Checked: true, Ready: true},
				{Name: ServiceAIModel, Checked: true, Ready: true},
			},
			want:   "healthy",
			states: map[string]string{ServiceWeather: StateConfigured},
		},
		{
			name: "weather not configured",
			status: fakeHealth{
				{Name: ServiceDatabase, Checked: true, Ready: true},
				{Name: ServiceAIModel, Checked: true, Ready: true},
			},
			want:   "degraded",
			states: map[string]string{ServiceWeather: StateNotConfigured},
		},
		{
			name:    "database down",
			weather: true,
			status: fakeHealth{
				{Name: ServiceDatabase, Checked: true, LastError: "connection refused"},
				{Name: ServiceAIModel, Checked: true, Ready: true},
			},
			want:   "degraded",
			states: map[string]string{ServiceDatabase: StateError},
		},
		{
			name:    "no watchers",
			weather: true,
			want:    "degraded",
			states:  map[string]string{ServiceDatabase: StateChecking, ServiceAIModel: StateNotInitialized},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{WeatherConfigured: tt.weather})
			env.server.health = tt.status

			resp := decode[HealthResponse](t, env.do(t, http.MethodGet, "/api/health", ""))
			if resp.Status != tt.want {
				t.Errorf("status = %q, want %q (services %v)", resp.Status, tt.want, resp.Services)
			}
			for name, want := range tt.states {
				if got := resp.Services[name]; got != want {
					t.Errorf("services[%s] = %q, want %q", name, got, want)
				}
			}
			if resp.Version == "" {
				t.Error("version missing")
			}
		})
	}
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodGet, "/api/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["service"] != ServiceName || body["status"] != "operational" || body["model"] != "gemini-2.0-flash" {
		t.Errorf("root = %v", body)
	}

	if rec := env.do(t, http.MethodGet, "/api/unknown", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"https://gotravel.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://gotravel.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://gotravel.example" {
		t.Errorf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("allow methods = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got %q", got)
	}
}

func TestRequestMetrics(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodGet, "/api/health", "")
	env.do(t, http.MethodGet, "/api/booking/GT-404", "")
	env.do(t, http.MethodGet, "/wp-login.php", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	for _, want := range []string{
		`gotravel_http_requests_total{method="GET",route="GET /api/health",status="200"} 1`,
		`gotravel_http_requests_total{method="GET",route="GET /api/booking/{reference}",status="404"} 1`,
		`gotravel_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
