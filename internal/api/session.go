package api

import (
	"net/http"
	"strings"
)

// SessionRequest names a session for the info and clear endpoints.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// SessionInfoResponse reports whether a session exists.
type SessionInfoResponse struct {
	Exists       bool   `json:"exists"`
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

// ClearHistoryResponse reports the result of clearing a session.
type ClearHistoryResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) sessionRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req SessionRequest
	if !s.decodeBody(w, r, &req) {
		return "", false
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.errorResponse(w, http.StatusUnprocessableEntity, "session_id is required")
		return "", false
	}
	return req.SessionID, true
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionRequest(w, r)
	if !ok {
		return
	}
	info := s.agent.SessionInfo(id)
	s.writeOK(w, SessionInfoResponse{
		Exists:       info.Exists,
		SessionID:    id,
		MessageCount: info.MessageCount,
	})
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionRequest(w, r)
	if !ok {
		return
	}
	cleared, err := s.agent.ClearHistory(r.Context(), id)
	if err != nil {
		s.logger.Warn("clear history failed", "session", id, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:     "Session is busy, please try again",
			SessionID: id,
		})
		return
	}
	resp := ClearHistoryResponse{SessionID: id, Message: "Session not found"}
	if cleared {
		resp.Success = true
		resp.Message = "Chat history cleared successfully"
	}
	s.writeOK(w, resp)
}
