// Package server is the HTTP and WebSocket edge. It authenticates callers,
// enforces the membership gate before granting streams or reads, and
// bridges live connections to their sockets. The chat core itself stays
// transport-agnostic.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/search"
	"chat-relay/services"
)

type ctxKey int

const userIDKey ctxKey = iota

type Server struct {
	log        *slog.Logger
	service    services.IChatService
	registry   *runtime.Registry
	dispatcher *runtime.Dispatcher
	index      *search.Index
	tokens     *auth.TokenManager
	validate   *validator.Validate
	upgrader   websocket.Upgrader
	pageSize   int
}

func New(log *slog.Logger, service services.IChatService,
	registry *runtime.Registry, dispatcher *runtime.Dispatcher,
	index *search.Index, tokens *auth.TokenManager, pageSize int) *Server {
	return &Server{
		log:        log,
		service:    service,
		registry:   registry,
		dispatcher: dispatcher,
		index:      index,
		tokens:     tokens,
		validate:   validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pageSize: pageSize,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/rooms/{room}/messages", s.postMessage).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{room}/messages", s.pageMessages).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room}/messages/since", s.messagesSince).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room}/search", s.searchMessages).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room}/stream", s.streamRoom).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}", s.editMessage).Methods(http.MethodPut)
	api.HandleFunc("/messages/{id}", s.deleteMessage).Methods(http.MethodDelete)
	return r
}

// authenticate resolves the caller from the bearer token. Token issuance
// lives outside this system; only validation happens here.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		claims, err := s.tokens.Validate(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	rooms, connections := s.registry.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Rooms:       rooms,
		Connections: connections,
		Process:     observability.Collect(),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string                     `json:"status"`
	Rooms       int                        `json:"rooms"`
	Connections int                        `json:"connections"`
	Process     observability.ProcessStats `json:"process"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.MapToHTTPStatus(err), errorResponse{Error: err.Error()})
}

// parseTime accepts an RFC 3339 timestamp, with or without sub-second
// precision.
func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
