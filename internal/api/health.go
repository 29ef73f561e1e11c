package api

import (
	"net/http"
	"time"

	"github.com/nugget/gotravel-agent/internal/buildinfo"
	"github.com/nugget/gotravel-agent/internal/connwatch"
)

// Watched service names. cmd registers connwatch watchers under these.
const (
	ServiceDatabase = "database"
	ServiceAIModel  = "ai_model"
	ServiceWeather  = "weather_api"
)

// Health states a service can report. Only the first four count as
// healthy.
const (
	StateConnected      = "connected"
	StateReady          = "ready"
	StateConfigured     = "configured"
	StateAvailable      = "available"
	StateError          = "error"
	StateChecking       = "checking"
	StateNotInitialized = "not_initialized"
	StateNotConfigured  = "not_configured"
)

func healthyState(state string) bool {
	switch state {
	case StateConnected, StateReady, StateConfigured, StateAvailable:
		return true
	}
	return false
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string            `json:"status"` // healthy or degraded
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}

// serviceStates maps watcher snapshots onto the health vocabulary.
func (s *Server) serviceStates() map[string]string {
	byName := make(map[string]connwatch.Status)
	if s.health != nil {
		for _, st := range s.health.Status() {
			byName[st.Name] = st
		}
	}

	states := make(map[string]string, 3)

	switch st, ok := byName[ServiceDatabase]; {
	case !ok || !st.Checked:
		states[ServiceDatabase] = StateChecking
	case st.Ready:
		states[ServiceDatabase] = StateConnected
	default:
		states[ServiceDatabase] = StateError
	}

	switch st, ok := byName[ServiceAIModel]; {
	case !ok:
		states[ServiceAIModel] = StateNotInitialized
	case !st.Checked:
		states[ServiceAIModel] = StateChecking
	case st.Ready:
		states[ServiceAIModel] = StateReady
	default:
		states[ServiceAIModel] = StateError
	}

	switch st, ok := byName[ServiceWeather]; {
	case !s.cfg.WeatherConfigured:
		states[ServiceWeather] = StateNotConfigured
	case !ok || !st.Checked:
		states[ServiceWeather] = StateConfigured
	case st.Ready:
		states[ServiceWeather] = StateAvailable
	default:
		states[ServiceWeather] = StateError
	}

	return states
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	states := s.serviceStates()
	status := "healthy"
	for _, state := range states {
		if !healthyState(state) {
			status = "degraded"
			break
		}
	}
	s.writeOK(w, HealthResponse{
		Status:    status,
		Timestamp: s.now(),
		Version:   buildinfo.Version,
		Services:  states,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, map[string]any{
		"service":     ServiceName,
		"version":     buildinfo.Version,
		"description": "Conversational travel booking assistant backed by a tool-calling language model",
		"endpoints": map[string]string{
			"chat":           "/api/chat",
			"chat_ws":        "/api/chat/ws",
			"health":         "/api/health",
			"session_info":   "/api/session/info",
			"clear_session":  "/api/session/clear",
			"create_booking": "/api/booking",
			"get_booking":    "/api/booking/{reference}",
			"booking_qr":     "/api/booking/{reference}/qr",
			"version":        "/v1/version",
			"metrics":        "/metrics",
		},
		"features": []string{
			"Search hotels by location and rating",
			"Discover travel packages",
			"Find tourist places and attractions",
			"Get real-time weather information",
			"Create bookings through natural language",
			"Conversational AI with context awareness",
		},
		"model":  s.agent.Model(),
		"status": "operational",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, buildinfo.RuntimeInfo())
}
