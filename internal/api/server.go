// Package api exposes the session controller over HTTP: one endpoint
// to run a conversation turn and a WebSocket stream of run events for
// live step rendering. The engine itself stays an in-process library;
// this is the transport the surrounding application talks to.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dizzy12138/bio-agent/internal/buildinfo"
	"github.com/Dizzy12138/bio-agent/internal/events"
	"github.com/Dizzy12138/bio-agent/internal/session"
	"github.com/Dizzy12138/bio-agent/internal/steps"
)

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	sessions *session.Manager
	bus      *events.Bus
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates an API server over the given session manager.
func NewServer(address string, port int, sessions *session.Manager, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// chatResponse mirrors the agent result for the UI store.
type chatResponse struct {
	Response      string       `json:"response"`
	ThinkingSteps []steps.Step `json:"thinking_steps"`
	DurationMs    int64        `json:"total_duration_ms"`
	Cancelled     bool         `json:"cancelled,omitempty"`
	Exhausted     bool         `json:"exhausted,omitempty"`
	Failed        bool         `json:"failed,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	ctrl := s.sessions.Get(req.ConversationID)
	res := ctrl.Send(r.Context(), req.Message)

	s.writeJSON(w, chatResponse{
		Response:      res.Response,
		ThinkingSteps: res.Steps,
		DurationMs:    res.TotalDuration.Milliseconds(),
		Cancelled:     res.Cancelled,
		Exhausted:     res.Exhausted,
		Failed:        res.Failed,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status":  "ok",
		"version": buildinfo.Version,
	})
}

// writeJSON encodes v to w, logging failures at debug level; they
// usually mean the client disconnected mid-response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}
