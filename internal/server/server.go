// Package server provides the HTTP/WebSocket transport for atlaschat:
// session lifecycle REST endpoints plus a WebSocket endpoint that carries
// the Event Publisher's client event stream (spec §6) and accepts chat
// requests and elicitation responses from the client.
//
// Grounded on the teacher's internal/server/server.go: a chi.Mux, the same
// middleware stack (RequestID, Logger, Recoverer, RealIP, CORS), and the
// same Config/DefaultConfig/New/Start/Shutdown/Router shape — generalized
// from the teacher's coding-session API surface to this spec's session +
// chat-request surface, and with the teacher's custom SSE relay (sse.go)
// replaced by the WebSocket transport SPEC_FULL.md calls for (§4.1).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/atlaschat/core/internal/app"
)

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: WebSocket connections are long-lived
	}
}

// Server is the HTTP server fronting one App.
type Server struct {
	config  Config
	app     *app.App
	router  *chi.Mux
	httpSrv *http.Server
}

// New creates a Server bound to app, with routes and middleware installed.
func New(cfg Config, a *app.App) *Server {
	s := &Server{config: cfg, app: a, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start begins serving and blocks until the server stops or errors.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
