// Package gateway is the HTTP surface of the task assistant: REST endpoints
// for tasks, conversations, and chat, plus a WebSocket event stream.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bonsai-todo/bonsai/internal/chat"
	"github.com/bonsai-todo/bonsai/internal/conversations"
	"github.com/bonsai-todo/bonsai/internal/events"
	"github.com/bonsai-todo/bonsai/internal/gateway/ws"
	"github.com/bonsai-todo/bonsai/internal/tasks"
)

type ctxKey int

const userIDKey ctxKey = 0

// UserResolver extracts the calling user's ID from a request. An empty result
// means the request carries no identity.
type UserResolver func(*http.Request) string

// HeaderUserResolver reads the X-User-ID header, falling back to the user_id
// query parameter for clients that cannot set headers.
func HeaderUserResolver(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

// Option configures a Server.
type Option func(*Server)

// WithUserResolver replaces the default header-based identity resolver.
func WithUserResolver(resolve UserResolver) Option {
	return func(s *Server) { s.resolveUser = resolve }
}

// Server is the bonsai gateway HTTP server.
type Server struct {
	httpServer    *http.Server
	hub           *ws.Hub
	bus           *events.Bus
	chat          *chat.Service
	tasks         *tasks.Service
	conversations *conversations.Service
	resolveUser   UserResolver
	stats         StatsSource
	host          string
	port          int
}

// NewServer creates a new gateway server.
func NewServer(
	bus *events.Bus,
	chatService *chat.Service,
	taskService *tasks.Service,
	conversationService *conversations.Service,
	host string,
	port int,
	opts ...Option,
) *Server {
	hub := ws.NewHub(bus, chatService)

	s := &Server{
		hub:           hub,
		bus:           bus,
		chat:          chatService,
		tasks:         taskService,
		conversations: conversationService,
		resolveUser:   HeaderUserResolver,
		host:          host,
		port:          port,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/metrics", s.handleMetrics)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)

		r.Post("/api/chat/message", s.handleChatMessage)
		r.Post("/api/chat/confirm", s.handleChatConfirm)

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{id}", s.handleGetTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
			r.Post("/{id}/complete", s.handleCompleteTask)
		})

		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Post("/", s.handleCreateTag)
			r.Patch("/{id}", s.handleUpdateTag)
			r.Delete("/{id}", s.handleDeleteTag)
		})

		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Get("/{id}", s.handleGetConversation)
			r.Delete("/{id}", s.handleDeleteConversation)
		})

		r.Get("/api/events", s.handleEvents)
		r.Get("/api/ws", func(w http.ResponseWriter, r *http.Request) {
			s.hub.ServeWS(w, r, userID(r))
		})
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("bonsai gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// validUserID constrains identities to file- and log-safe names. User IDs
// flow into storage keys and audit-log file names, so path separators and
// dot traversal are rejected at the door.
var validUserID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,63}$`)

// requireUser resolves the calling user. There is no authentication layer;
// the resolved ID is the identity.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := s.resolveUser(r)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		if !validUserID.MatchString(userID) {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	limit := 50
	if limitStr != "" {
		fmt.Sscanf(limitStr, "%d", &limit)
	}

	history := s.bus.History(limit)
	uid := userID(r)

	type eventJSON struct {
		ID        string             `json:"id"`
		UserID    string             `json:"user_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, 0, len(history))
	for _, e := range history {
		if e.UserID != "" && e.UserID != uid {
			continue
		}
		result = append(result, eventJSON{
			ID:        e.ID,
			UserID:    e.UserID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
