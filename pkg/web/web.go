/*
Package web serves the search over HTTP.

Routes:

	GET /                 embedded search page
	GET /healthz          liveness
	GET /api/suggest      one-shot lookup: ?q=fisk&mode=text&len=4
	GET /api/areas        selectable categories
	GET /api/history      recently selected words: ?p=fi&l=10
	GET /ws               live search session over a WebSocket

A WebSocket connection owns one search.Session. The browser sends small JSON
commands ({"type": "input", "text": "fis"}) and the server pushes the full
session state after every change. Only the newest state is ever sent, so a
slow client skips intermediate snapshots instead of queueing them.
*/
package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastiangx/ordsok/internal/logger"
	"github.com/bastiangx/ordsok/pkg/config"
	"github.com/bastiangx/ordsok/pkg/ordbok"
	"github.com/bastiangx/ordsok/pkg/search"
	"github.com/bastiangx/ordsok/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front end
type Server struct {
	fetcher  suggest.Fetcher
	history  *suggest.History
	link     func(word string) string
	cfg      atomic.Pointer[config.Config]
	upgrader websocket.Upgrader
	log      *log.Logger

	sessions  atomic.Int64
	closing   chan struct{}
	closeOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithHistory shares h between every session and the history endpoint
func WithHistory(h *suggest.History) Option {
	return func(s *Server) { s.history = h }
}

// WithLinker sets how detail links are built
func WithLinker(link func(word string) string) Option {
	return func(s *Server) { s.link = link }
}

// NewServer creates the HTTP front end. cfg may be swapped later with Apply.
func NewServer(fetcher suggest.Fetcher, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		fetcher: fetcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
		},
		log:     logger.New("web"),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.link == nil {
		detail := cfg.API.DetailURL
		s.link = func(word string) string { return ordbok.DetailURL(detail, word) }
	}
	s.cfg.Store(cfg)
	return s
}

// Apply swaps the config used for new sessions. Running sessions keep theirs.
func (s *Server) Apply(cfg *config.Config) {
	s.cfg.Store(cfg)
}

// Sessions returns the number of open WebSocket sessions
func (s *Server) Sessions() int64 {
	return s.sessions.Load()
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/suggest", s.handleSuggest)
		r.Get("/areas", s.handleAreas)
		r.Get("/history", s.handleHistory)
	})
	if s.cfg.Load().Server.EnableWS {
		r.Get("/ws", s.handleWS)
	}
	return r
}

// Run serves on the configured address until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	cfg := s.cfg.Load().Server
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: cfg.ReadTimeout(),
		// WebSocket writes set their own deadlines after the upgrade
		WriteTimeout: cfg.WriteTimeout(),
	}
	srv.RegisterOnShutdown(s.closeSockets)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("Listening", "addr", cfg.Addr, "ws", cfg.EnableWS)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Debug("Shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// closeSockets ends every WebSocket session. Hijacked connections are not closed by Shutdown.
func (s *Server) closeSockets() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) newSession(onChange func(search.State)) *search.Session {
	sc := s.cfg.Load().Search
	opts := []search.Option{
		search.WithDebounce(sc.Debounce()),
		search.WithMode(sc.Mode()),
		search.WithPatternLen(sc.PatternLen),
		search.WithMaxLetters(sc.MaxLetters),
		search.WithLinker(s.link),
		search.WithOnChange(onChange),
	}
	if s.history != nil {
		opts = append(opts, search.WithHistory(s.history))
	}
	return search.NewSession(s.fetcher, opts...)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start))
	})
}
