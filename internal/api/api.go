// Package api exposes the DialogPipe HTTP surface.
//
// It provides RESTful endpoints for submitting conversational turns, greeting
// added conversation members, and inspecting conversation state.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dialogpipe/dialogpipe/internal/bot"
	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	Bot       *bot.Bot
	Store     store.Store
	Messaging messaging.Service
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithBot sets the bot handling inbound turns.
func WithBot(b *bot.Bot) Option {
	return func(o *Opts) { o.Bot = b }
}

// WithStore sets the store backing the inspection endpoints.
func WithStore(st store.Store) Option {
	return func(o *Opts) { o.Store = st }
}

// WithMessaging sets an optional outbound channel. When configured, turn
// output is also delivered to the sending user over it.
func WithMessaging(svc messaging.Service) Option {
	return func(o *Opts) { o.Messaging = svc }
}

// Server hosts the DialogPipe HTTP API.
type Server struct {
	bot        *bot.Bot
	st         store.Store
	msgService messaging.Service
	addr       string
	srv        *http.Server
}

// NewServer creates an API server. The listen address falls back to the
// API_ADDR environment variable, then to DefaultAddr.
func NewServer(opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Bot == nil {
		return nil, errMissingBot
	}
	if cfg.Store == nil {
		return nil, errMissingStoreAPI
	}

	s := &Server{bot: cfg.Bot, st: cfg.Store, msgService: cfg.Messaging, addr: cfg.Addr}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/messages", s.messagesHandler)
	mux.HandleFunc("POST /api/conversations/{id}/members", s.membersAddedHandler)
	mux.HandleFunc("GET /api/conversations/{id}", s.conversationHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s, nil
}

// Handler returns the route multiplexer, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
