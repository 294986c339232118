// Package api serves the yojana REST resources over chi.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"yojana/internal/auth"
	"yojana/internal/core"
	"yojana/pkg/domain"
)

// Server routes HTTP requests to the service after authentication and the
// route's role policy have been checked.
type Server struct {
	router  chi.Router
	svc     *core.Service
	authn   *auth.Authenticator
	logger  *slog.Logger
	metrics *HTTPMetrics
	extra   map[string]http.Handler
}

// Option customises a Server.
type Option func(*Server)

// WithLogger routes request and error logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHTTPMetrics records per-route request counts and latencies.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHandler mounts an unauthenticated handler, such as /metrics or
// /debug/vars, at path.
func WithHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		if path != "" && h != nil {
			s.extra[path] = h
		}
	}
}

// NewServer wires the resource routes for svc. Credentials are checked
// against the service's store.
func NewServer(svc *core.Service, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		authn:  auth.NewAuthenticator(svc.Store()),
		logger: slog.New(slog.DiscardHandler),
		extra:  map[string]http.Handler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	for path, h := range s.extra {
		s.router.Handle(path, h)
	}
	for _, rt := range routeTable {
		s.router.Method(rt.method, rt.pattern, s.authorize(rt))
	}
	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessages(w, false, ErrorMessage{Status: http.StatusNotFound, Kind: KindNotFound, Message: "no such resource"})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessages(w, false, ErrorMessage{Status: http.StatusMethodNotAllowed, Kind: KindBadRequest, Message: "method not allowed"})
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.observe(r.Method, pattern, status, dur)
		}
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "route", pattern, "status", status, "dur", dur, "request_id", middleware.GetReqID(r.Context()))
	})
}

// authorize authenticates the caller and applies the route policy before the
// handler runs, so denied requests never reach the store.
func (s *Server) authorize(rt route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.authn.Authenticate(r)
		if err != nil {
			s.fail(w, r, rt.xml, err)
			return
		}
		if !rt.policy.Allows(caller) {
			writeMessages(w, rt.xml, ErrorMessage{Status: http.StatusForbidden, Kind: KindForbidden, Message: "insufficient permissions"})
			return
		}
		ctx := auth.WithPrincipal(r.Context(), caller)
		rt.handle(s, w, r.WithContext(ctx), caller)
	})
}

// fail writes err as an envelope. Unexpected errors are logged and reported
// as internal without their message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, asXML bool, err error) {
	msg, known := errorMessage(err)
	if !known {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeMessages(w, asXML, msg)
}

func (s *Server) ok(w http.ResponseWriter, status int, data map[string]any) {
	env := newEnvelope()
	for k, v := range data {
		env.Data[k] = v
	}
	writeJSON(w, status, env)
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.Invalid("body", "malformed JSON payload: "+err.Error())
}
