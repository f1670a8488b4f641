package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-bricks-harness/logger"
)

// DefaultPort is the scrape port used when none is configured
const DefaultPort = 8001

const (
	metricsRoute = "/metrics"
	healthRoute  = "/healthz"

	readHeaderTimeout = 5 * time.Second
)

// ErrServerStarted is returned when Start is called on a running server
var ErrServerStarted = errors.New("metrics server already started")

// Server exposes a Recorder over HTTP
type Server struct {
	echo     *echo.Echo
	addr     string
	logger   logger.Logger
	mu       sync.Mutex
	listener net.Listener
	group    *errgroup.Group
}

// NewServer creates a metrics server for rec listening on host:port.
// An empty host binds all interfaces; port 0 picks a free port.
func NewServer(host string, port int, rec *Recorder, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		addr:   net.JoinHostPort(host, fmt.Sprint(port)),
		logger: log,
	}

	e.GET(metricsRoute, echo.WrapHandler(rec.Handler()))
	e.GET(healthRoute, s.healthCheck)

	return s
}

// Start binds the listener and serves in a supervised goroutine. Bind errors
// are returned synchronously. The server stops when Shutdown is called; the
// serving goroutine never keeps the process alive on its own.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics server listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.echo.Listener = ln

	s.logger.Info().
		Str("address", ln.Addr().String()).
		Str("path", metricsRoute).
		Msg("Starting metrics server...")

	// echo.Shutdown only stops its own Server
	server := s.echo.Server
	server.ReadHeaderTimeout = readHeaderTimeout

	s.group = &errgroup.Group{}
	s.group.Go(func() error {
		if err := s.echo.StartServer(server); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
			return err
		}
		return nil
	})
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the scrape URL of a started server
func (s *Server) URL() string {
	return "http://" + s.Addr() + metricsRoute
}

// Shutdown stops accepting scrapes and waits for the serving goroutine.
// Calling it on a server that was never started is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()

	if group == nil {
		return nil
	}

	shutdownErr := s.echo.Shutdown(ctx)
	waitErr := group.Wait()

	s.mu.Lock()
	s.group = nil
	s.mu.Unlock()

	s.logger.Info().Msg("metrics server stopped")
	return errors.Join(shutdownErr, waitErr)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(nethttp.StatusOK, map[string]string{
		"status": "ok",
	})
}
