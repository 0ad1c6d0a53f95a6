// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the orchestrator over HTTP: a JSON search endpoint,
// an NDJSON endpoint that streams status checkpoints before the result, and
// a health check.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/answer-engine/internal/orchestrator"
	"github.com/pdiddy/answer-engine/pkg/types"
)

// Resolver answers queries. *orchestrator.Orchestrator implements it.
type Resolver interface {
	ResolveDetailed(ctx context.Context, query string, onStatus orchestrator.StatusFunc) (orchestrator.Resolution, error)
}

// maxBodyBytes caps the request body size.
const maxBodyBytes = 64 << 10

// Stable user-facing error messages.
const (
	msgInvalidBody = "invalid request body"
	msgInternal    = "Failed to process query"
)

// Server holds the HTTP handlers.
type Server struct {
	resolver Resolver
	admit    *semaphore.Weighted
	origins  []string
	logger   *zap.Logger
}

// New builds a server. At most concurrent resolutions run at once; further
// requests wait for a slot or for the client to give up.
func New(resolver Resolver, cfg types.ServerConfig, concurrent int, logger *zap.Logger) *Server {
	if concurrent < 1 {
		concurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		resolver: resolver,
		admit:    semaphore.NewWeighted(int64(concurrent)),
		origins:  origins,
		logger:   logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/search", func(r chi.Router) {
		r.Post("/", s.handleSearch)
		r.Post("/stream", s.handleStream)
	})
	return r
}

// searchRequest is the body of both search endpoints.
type searchRequest struct {
	Query string `json:"query"`
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	if err := s.admit.Acquire(r.Context(), 1); err != nil {
		return
	}
	defer s.admit.Release(1)

	res, err := s.resolver.ResolveDetailed(r.Context(), query, nil)
	if err != nil {
		status, msg := s.classify(r, err)
		if status == 0 {
			return
		}
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, res.Response)
}

// Stream event types.
const (
	EventStatus = "status"
	EventResult = "result"
	EventError  = "error"
)

// Event is one NDJSON line of the stream endpoint.
type Event struct {
	Type     string                `json:"type"`
	Status   string                `json:"status,omitempty"`
	Response *types.SearchResponse `json:"response,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	if err := s.admit.Acquire(r.Context(), 1); err != nil {
		return
	}
	defer s.admit.Release(1)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	send := func(ev Event) {
		if err := enc.Encode(ev); err != nil {
			s.logger.Debug("stream write failed", zap.Error(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, err := s.resolver.ResolveDetailed(r.Context(), query, func(status string) {
		send(Event{Type: EventStatus, Status: status})
	})
	if err != nil {
		status, msg := s.classify(r, err)
		if status == 0 {
			return
		}
		send(Event{Type: EventError, Error: msg})
		return
	}
	send(Event{Type: EventResult, Response: &res.Response})
}

// decodeQuery reads the request body. It writes a 400 response and reports
// false when the body is malformed or the query is empty.
func decodeQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return "", false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: orchestrator.ErrEmptyQuery.Error()})
		return "", false
	}
	return req.Query, true
}

// classify maps a resolve error to a status code and a stable message. A
// zero status means the client went away and nothing should be written.
func (s *Server) classify(r *http.Request, err error) (int, string) {
	if r.Context().Err() != nil {
		s.logger.Info("client cancelled query", zap.String("request_id", requestIDFrom(r.Context())))
		return 0, ""
	}
	var se *orchestrator.SearchError
	switch {
	case errors.Is(err, orchestrator.ErrEmptyQuery):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &se):
		s.logger.Warn("query failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("reason", se.Message),
			zap.Strings("details", se.Details))
		return http.StatusBadGateway, se.Message
	default:
		s.logger.Error("query failed",
			zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		return http.StatusInternalServerError, msgInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestIDHeader carries the request ID in both directions.
const requestIDHeader = "X-Request-ID"

type ctxKey struct{}

// requestID assigns each request an ID, reusing a caller-supplied one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}
