package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"github.com/nugget/gotravel-agent/internal/agent"
)

// MaxMessageLength is the longest chat message accepted, in characters.
const MaxMessageLength = 2000

// ChatRequest is the body of POST /api/chat and of each websocket frame.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	// Format "html" adds a rendered copy of the response.
	Format string `json:"format,omitempty"`
}

// validate returns a client-facing problem, or "" when the request is
// acceptable.
func (r *ChatRequest) validate() string {
	if strings.TrimSpace(r.Message) == "" {
		return "message must not be empty"
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return fmt.Sprintf("message must be at most %d characters", MaxMessageLength)
	}
	switch r.Format {
	case "", "text", "html":
	default:
		return fmt.Sprintf("unsupported format %q", r.Format)
	}
	return ""
}

// ChatResponse is a successful chat turn.
type ChatResponse struct {
	Success      bool            `json:"success"`
	Response     string          `json:"response"`
	ResponseHTML string          `json:"response_html,omitempty"`
	SessionID    string          `json:"session_id"`
	ToolsUsed    []agent.ToolUse `json:"tools_used"`
	MessageCount int             `json:"message_count"`
	Timestamp    time.Time       `json:"timestamp"`
}

// converse runs one chat turn. On failure it returns the status code
// and error body to send instead.
func (s *Server) converse(ctx context.Context, req ChatRequest) (*ChatResponse, int, *ErrorResponse) {
	if problem := req.validate(); problem != "" {
		return nil, http.StatusUnprocessableEntity, &ErrorResponse{Error: problem, SessionID: req.SessionID}
	}

	var user *agent.UserContext
	if req.UserID != "" {
		user = &agent.UserContext{UserID: req.UserID}
	}

	res := s.agent.ProcessMessage(ctx, req.Message, req.SessionID, user)
	if !res.Success {
		status := http.StatusInternalServerError
		if res.Retryable {
			status = http.StatusServiceUnavailable
		}
		msg := res.Response
		if s.cfg.Debug && res.Err != nil {
			msg = fmt.Sprintf("An error occurred processing your message: %v", res.Err)
		}
		return nil, status, &ErrorResponse{Error: msg, SessionID: res.SessionID}
	}

	resp := &ChatResponse{
		Success:      true,
		Response:     res.Response,
		SessionID:    res.SessionID,
		ToolsUsed:    res.ToolsUsed,
		MessageCount: res.MessageCount,
		Timestamp:    s.now(),
	}
	if req.Format == "html" {
		html, err := renderMarkdown(res.Response)
		if err != nil {
			s.logger.Warn("markdown render failed", "session", res.SessionID, "error", err)
		} else {
			resp.ResponseHTML = html
		}
	}
	return resp, http.StatusOK, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if f := r.URL.Query().Get("format"); f != "" {
		req.Format = f
	}

	resp, status, errBody := s.converse(r.Context(), req)
	if errBody != nil {
		s.writeError(w, status, *errBody)
		return
	}
	s.writeOK(w, resp)
}

// renderMarkdown converts an assistant reply to an HTML fragment.
func renderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
