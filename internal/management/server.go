// ABOUTME: Management API for health, configuration, live sessions and traffic history
// ABOUTME: Also serves the Prometheus /metrics endpoint

package management

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/harper/php-integrator/internal/command"
	"github.com/harper/php-integrator/internal/config"
	"github.com/harper/php-integrator/internal/db"
	"github.com/harper/php-integrator/internal/logger"
	"github.com/harper/php-integrator/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	config     *config.Config
	sessionMgr *session.Manager
	registry   *command.MapRegistry
	db         *db.DB
	version    string
	startedAt  time.Time
	mux        *http.ServeMux
}

// NewServer wires the endpoints. database and gatherer may be nil.
func NewServer(cfg *config.Config, mgr *session.Manager, registry *command.MapRegistry, database *db.DB, gatherer prometheus.Gatherer, version string) *Server {
	s := &Server{
		config:     cfg,
		sessionMgr: mgr,
		registry:   registry,
		db:         database,
		version:    version,
		startedAt:  time.Now(),
		mux:        http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/commands", s.handleCommands)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)
	s.mux.HandleFunc("/api/sessions/", s.handleSessionMessages)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding management response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":          "healthy",
		"version":         s.version,
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"active_sessions": s.sessionMgr.Count(),
		"traffic_log":     s.db != nil,
	}
	writeJSON(w, health)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.config)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	methods := []string{}
	if s.registry != nil {
		methods = s.registry.Methods()
	}
	writeJSON(w, map[string]interface{}{"methods": methods})
}

// handleSessions lists live connections, or every logged connection with
// ?history=true when the traffic log is enabled.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Enable CORS for web interface
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.URL.Query().Get("history") != "true" {
		writeJSON(w, s.sessionMgr.List())
		return
	}

	if s.db == nil {
		http.Error(w, "traffic log disabled", http.StatusNotFound)
		return
	}
	sessions, err := s.db.GetAllSessions()
	if err != nil {
		http.Error(w, "failed to get sessions", http.StatusInternalServerError)
		return
	}

	type SessionResponse struct {
		ID          string  `json:"id"`
		Transport   string  `json:"transport"`
		RemoteAddr  string  `json:"remoteAddr"`
		ProjectName string  `json:"projectName,omitempty"`
		CreatedAt   string  `json:"createdAt"`
		ClosedAt    *string `json:"closedAt,omitempty"`
		IsActive    bool    `json:"isActive"`
	}

	response := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		closedAt := (*string)(nil)
		if sess.ClosedAt != nil {
			closedAtStr := sess.ClosedAt.Format(time.DateTime)
			closedAt = &closedAtStr
		}

		response = append(response, SessionResponse{
			ID:          sess.ID,
			Transport:   sess.Transport,
			RemoteAddr:  sess.RemoteAddr,
			ProjectName: sess.ProjectName,
			CreatedAt:   sess.CreatedAt.Format(time.DateTime),
			ClosedAt:    closedAt,
			IsActive:    sess.ClosedAt == nil,
		})
	}

	writeJSON(w, response)
}

// handleSessionMessages serves /api/sessions/{id}/messages from the traffic log.
func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	id, tail, ok := strings.Cut(rest, "/")
	if !ok || id == "" || tail != "messages" {
		http.NotFound(w, r)
		return
	}
	if s.db == nil {
		http.Error(w, "traffic log disabled", http.StatusNotFound)
		return
	}

	messages, err := s.db.GetSessionMessages(id)
	if err != nil {
		http.Error(w, "failed to get messages", http.StatusInternalServerError)
		return
	}

	type MessageResponse struct {
		Direction string          `json:"direction"`
		Type      string          `json:"type,omitempty"`
		Method    string          `json:"method,omitempty"`
		ID        json.RawMessage `json:"id,omitempty"`
		ErrorCode *int            `json:"errorCode,omitempty"`
		Raw       string          `json:"raw"`
		Timestamp string          `json:"timestamp"`
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		var id json.RawMessage
		if m.JSONRPCID != "" {
			id = json.RawMessage(m.JSONRPCID)
		}
		response = append(response, MessageResponse{
			Direction: string(m.Direction),
			Type:      m.MessageType,
			Method:    m.Method,
			ID:        id,
			ErrorCode: m.ErrorCode,
			Raw:       m.RawMessage,
			Timestamp: m.Timestamp.Format(time.DateTime),
		})
	}

	writeJSON(w, response)
}
