// Package server exposes the orchestration core to operators: job control,
// the proposal review queue, candidate audit trails and a live event stream.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duli1982/aitalentsonardemo-sub003/am"
	"github.com/duli1982/aitalentsonardemo-sub003/bus"
	"github.com/duli1982/aitalentsonardemo-sub003/errors"
	"github.com/duli1982/aitalentsonardemo-sub003/eventlog"
	"github.com/duli1982/aitalentsonardemo-sub003/logger"
	"github.com/duli1982/aitalentsonardemo-sub003/pipeline"
	"github.com/duli1982/aitalentsonardemo-sub003/proposal"
	"github.com/duli1982/aitalentsonardemo-sub003/pulse/schedule"
)

const (
	// MaxClients caps concurrent WebSocket connections.
	MaxClients = 64

	// ShutdownTimeout bounds how long Serve waits for in-flight requests.
	ShutdownTimeout = 5 * time.Second

	clientBuffer = 64
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	Scheduler *schedule.Scheduler
	Queue     *proposal.Queue
	Reviewer  *pipeline.Reviewer
	Events    *eventlog.Log
	Bus       *bus.Bus
	Logger    *zap.SugaredLogger
}

// Server serves the operator API.
type Server struct {
	scheduler *schedule.Scheduler
	queue     *proposal.Queue
	reviewer  *pipeline.Reviewer
	events    *eventlog.Log
	bus       *bus.Bus
	cfg       am.ServerConfig
	logger    *zap.SugaredLogger

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.Mutex
	clients map[*Client]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a server. Scheduler, Queue and Reviewer are required.
func New(deps Deps, cfg am.ServerConfig) (*Server, error) {
	if deps.Scheduler == nil || deps.Queue == nil || deps.Reviewer == nil {
		return nil, errors.New("server requires a scheduler, a proposal queue and a reviewer")
	}
	if deps.Events == nil {
		deps.Events = eventlog.NewLog(nil, deps.Logger)
	}
	if deps.Bus == nil {
		deps.Bus = bus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		scheduler: deps.Scheduler,
		queue:     deps.Queue,
		reviewer:  deps.Reviewer,
		events:    deps.Events,
		bus:       deps.Bus,
		cfg:       cfg,
		logger:    logger.OrNop(deps.Logger).With(logger.FieldComponent, "server"),
		clients:   make(map[*Client]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.mux = s.routes()
	return s, nil
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on the configured port until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", s.cfg.Port)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	logger.AddPulseOpenSymbol(s.logger).Infow("HTTP server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP shutdown did not complete cleanly", logger.FieldError, err)
	}
	logger.AddPulseCloseSymbol(s.logger).Infow("HTTP server stopped")
	return nil
}

// Close disconnects every WebSocket client and waits for their pumps.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range clients {
		c.close()
	}
	s.wg.Wait()
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
