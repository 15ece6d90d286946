// Package httpserver exposes the chat and authentication endpoints that the
// web UI talks to.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"supportbot/agent"
	"supportbot/logger"
	"supportbot/mcpclient"
)

// Runner executes one conversation turn. Satisfied by *agent.Agent.
type Runner interface {
	Run(ctx context.Context, userText string, history []agent.Turn, identityHint string) (agent.Turn, error)
}

// Authenticator verifies customer credentials. Satisfied by *agent.Verifier.
type Authenticator interface {
	Verify(ctx context.Context, email, pin string) agent.AuthResult
}

// Config holds the server's wiring.
type Config struct {
	Port int
	// OverallTimeout bounds one whole chat run; when it lapses the client
	// gets a 504 with a message distinct from other failures.
	OverallTimeout time.Duration
	// StaticDir is the directory holding the chat page assets.
	StaticDir string

	Runner Runner
	Auth   Authenticator
	Store  agent.Store
	Logger logger.Logger
}

// Server is the HTTP front of the support bot.
type Server struct {
	cfg    Config
	logger logger.Logger
	http   *http.Server
}

// NewServer creates a Server from the given configuration.
func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	s := &Server{
		cfg:    cfg,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/auth", s.handleAuth)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(cfg.StaticDir, "index.html"))
	})

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	return s
}

// Handler returns the underlying handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", logger.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

// ChatResponse is the outbound chat payload.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// AuthRequest is the inbound credential payload.
type AuthRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = "default"
	}

	s.logger.Info("Received chat request",
		logger.String("conversation_id", req.ConversationID),
		logger.Int("message_chars", len(req.Message)))

	history := s.cfg.Store.Get(req.ConversationID)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.OverallTimeout)
	defer cancel()

	assistant, err := s.cfg.Runner.Run(ctx, req.Message, history, req.UserID)
	if err != nil {
		if errors.Is(err, mcpclient.ErrTimeout) {
			s.logger.Error("Chat run timed out", err,
				logger.String("conversation_id", req.ConversationID))
			writeJSON(w, http.StatusGatewayTimeout, errorResponse{
				Detail: fmt.Sprintf("Request timed out after %s. The tool server is taking too long to respond.", s.cfg.OverallTimeout),
			})
			return
		}
		s.logger.Error("Chat run failed", err,
			logger.String("conversation_id", req.ConversationID))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	// History is extended only on success, so a failed run leaves the
	// conversation exactly as it was.
	s.cfg.Store.Append(req.ConversationID, agent.UserTurn(req.Message), assistant)

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       assistant.Content,
		ConversationID: req.ConversationID,
	})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}

	// Verification never errors at this boundary; failures arrive as a
	// well-formed result the UI can display.
	result := s.cfg.Auth.Verify(r.Context(), req.Email, req.Pin)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
