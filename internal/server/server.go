package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"github.com/lox/avetor/internal/crash"
	"github.com/lox/avetor/internal/randutil"
	"github.com/lox/avetor/internal/session"
	"github.com/lox/avetor/internal/sportsbook"
)

// Config configures the server.
type Config struct {
	Addr    string
	Session session.Config
	// Seed makes crash points reproducible per connection order; zero
	// seeds from the clock.
	Seed int64
}

// Server accepts websocket players, each with their own session.
type Server struct {
	cfg          Config
	logger       *log.Logger
	clock        quartz.Clock
	catalog      sportsbook.Catalog
	newGenerator func(n int) crash.Generator
	upgrader     websocket.Upgrader
	router       chi.Router

	mu          sync.RWMutex
	connections map[*Connection]struct{}
	httpServer  *http.Server
	shutdown    bool
	seq         atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock handed to every session.
func WithClock(c quartz.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithGeneratorFunc sets how each session's crash point generator is built.
// n counts connections from zero.
func WithGeneratorFunc(f func(n int) crash.Generator) Option {
	return func(s *Server) { s.newGenerator = f }
}

// WithCatalog sets the sports catalog shared by all sessions.
func WithCatalog(c sportsbook.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// NewServer creates a WebSocket server
func NewServer(cfg Config, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.catalog == nil {
		s.catalog = sportsbook.NewStaticCatalog(sportsbook.DemoMatches(s.clock.Now()))
	}
	if s.newGenerator == nil {
		seed := randutil.Seed(cfg.Seed, s.clock.Now())
		s.newGenerator = func(n int) crash.Generator {
			return crash.NewRandomGenerator(randutil.Worker(seed, n))
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)
	r.Get("/matches", s.handleMatches)
	s.router = r

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every connection, settling their sessions, and stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	srv := s.httpServer
	s.shutdown = true
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) openSession(username string) (*session.Session, error) {
	n := int(s.seq.Add(1) - 1)
	cfg := s.cfg.Session
	cfg.Username = username
	return session.New(cfg, s.logger,
		session.WithClock(s.clock),
		session.WithGenerator(s.newGenerator(n)),
		session.WithCatalog(s.catalog),
	)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := newConnection(ws, s, middleware.GetReqID(r.Context()))

	s.mu.Lock()
	s.connections[conn] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total, "remote", r.RemoteAddr)

	conn.Start()

	go func() {
		<-conn.Done()
		s.mu.Lock()
		delete(s.connections, conn)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info("Client disconnected", "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "OK")
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.catalog.Matches())
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"requestId", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
