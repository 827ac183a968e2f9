// Package api is the HTTP surface: the /honeypot endpoint plus health and
// readiness probes. The honeypot endpoint follows the evaluation contract:
// it always answers 200 with {status, reply}; only a bad API key gets a 401.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/engagement"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/sanitize"
	"github.com/deepakm0003/HCL-Guvi-Agentic-Honeypot/internal/session"
)

const defaultSessionID = "eval-session"

type Server struct {
	router   *chi.Mux
	port     int
	apiKey   string
	maxBody  int64
	pipeline *engagement.Pipeline
	store    session.Store
	logger   *slog.Logger
}

func NewServer(port int, apiKey string, maxBody int64, pipeline *engagement.Pipeline, store session.Store, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		apiKey:   apiKey,
		maxBody:  maxBody,
		pipeline: pipeline,
		store:    store,
		logger:   logger,
	}

	router.Get("/", s.root)
	router.Get("/health", s.health)
	router.Get("/ready", s.ready)
	router.Post("/honeypot", s.honeypot)

	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) honeypot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.apiKey != "" && r.Header.Get("x-api-key") != s.apiKey {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing API key"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Could not read request body"})
		return
	}
	if int64(len(body)) > s.maxBody {
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Request too large"})
		return
	}
	if len(body) == 0 {
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Request body is required"})
		return
	}

	var req honeypotRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.logger.Warn("invalid request body", "error", err)
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Invalid request format"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	if !sanitize.ValidSessionID(sessionID) {
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Invalid session ID"})
		return
	}

	now := time.Now().UTC()
	msg := req.Message.toMessage(now)
	msg.Text = sanitize.Text(msg.Text)
	if msg.Text == "" {
		s.writeReply(w, honeypotResponse{Status: "success", Reply: "I didn't understand. Can you repeat?"})
		return
	}

	history := make([]session.Message, 0, len(req.History))
	for _, m := range req.History {
		hm := m.toMessage(now)
		hm.Text = sanitize.Text(hm.Text)
		if hm.Text == "" {
			continue
		}
		history = append(history, hm)
	}

	reply, err := s.pipeline.HandleMessage(r.Context(), engagement.Turn{
		SessionID: sessionID,
		Message:   msg,
		History:   history,
	})
	if err != nil {
		if errors.Is(err, engagement.ErrBusy) {
			s.logger.Warn("session busy", "session_id", sessionID)
		} else {
			s.logger.Error("turn failed", "session_id", sessionID, "error", err)
		}
		s.writeReply(w, honeypotResponse{Status: "error", Reply: "Something went wrong. Please try again."})
		return
	}

	s.logger.Info("turn handled",
		"session_id", sessionID,
		"request_id", middleware.GetReqID(r.Context()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	s.writeReply(w, honeypotResponse{Status: "success", Reply: reply})
}

func (s *Server) writeReply(w http.ResponseWriter, resp honeypotResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"service":  "agentic-honeypot",
		"status":   "ok",
		"honeypot": "POST /honeypot",
		"health":   "GET /health",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if err := s.store.Ping(r.Context()); err != nil {
		storeStatus = "unavailable"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "honeypot",
		"store":   storeStatus,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"ready": "true", "service": "honeypot"})
}
