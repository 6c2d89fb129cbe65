package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/statuswatch/internal/broadcast"
)

const (
	// streamWriteTimeout bounds a single write to a streaming client so a
	// stalled connection cannot pin its handler. Must be <= shutdownTimeout.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultTitle = "Status Watch"

	// titlePlaceholder is the marker in the dashboard HTML replaced with the title.
	titlePlaceholder = "{{.Title}}"
)

// Hub is the subscriber registry streaming handlers attach to.
type Hub interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(id uuid.UUID)
	Count() int
}

// Health is the body of GET /health.
type Health struct {
	Status           string `json:"status"`
	Providers        int    `json:"providers"`
	Subscribers      int    `json:"subscribers"`
	EventsDispatched int64  `json:"events_dispatched"`
}

// Config holds the optional parts of a [Server].
type Config struct {
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	// Assets contains assets/index.html. Nil disables the dashboard route.
	Assets fs.FS

	// Title replaces the title placeholder in the dashboard.
	Title string

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// Providers is reported by /health.
	Providers int

	// Dispatched reports the number of events dispatched so far.
	Dispatched func() int64
}

// Server serves the dashboard, event streams, health and metrics.
type Server struct {
	hub        Hub
	cfg        Config
	httpServer *http.Server
	addr       net.Addr
	logger     *slog.Logger
}

// NewServer creates a [Server]. It does not listen until [Server.Start].
func NewServer(hub Hub, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.cfg.Assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving in a background goroutine and returns once the
// listener is bound. The server shuts down when ctx is cancelled.
//
// Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streaming handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", s.addr.String())
	return nil
}

// Addr returns the bound address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h := Health{
		Status:      "ok",
		Providers:   s.cfg.Providers,
		Subscribers: s.hub.Count(),
	}
	if s.cfg.Dispatched != nil {
		h.EventsDispatched = s.cfg.Dispatched()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}
