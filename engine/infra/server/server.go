package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/compozy/arag/engine/infra/monitoring"
	"github.com/compozy/arag/engine/infra/server/appstate"
	"github.com/compozy/arag/engine/infra/server/middleware/ratelimit"
	"github.com/compozy/arag/engine/infra/server/routes"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

const (
	serverShutdownTimeout = 5 * time.Second
	httpReadTimeout       = 15 * time.Second
	httpIdleTimeout       = 60 * time.Second
	writeTimeoutSlack     = 10 * time.Second
	hostAny               = "0.0.0.0"
	hostLoopback          = "127.0.0.1"
)

type Server struct {
	config      *config.Config
	state       *appstate.State
	monitoring  *monitoring.Service
	redisClient *redis.Client
	router      *gin.Engine
}

// Option customizes the server.
type Option func(*Server)

// WithMonitoring exposes metrics and records HTTP metrics.
func WithMonitoring(m *monitoring.Service) Option {
	return func(s *Server) {
		s.monitoring = m
	}
}

// WithRedis shares rate limit counters through redis.
func WithRedis(client *redis.Client) Option {
	return func(s *Server) {
		s.redisClient = client
	}
}

// NewServer builds the HTTP API around state. The configuration is read
// from ctx.
func NewServer(ctx context.Context, state *appstate.State, opts ...Option) (*Server, error) {
	if state == nil {
		return nil, fmt.Errorf("app state is required")
	}
	s := &Server{config: config.FromContext(ctx), state: state}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.buildRouter(ctx); err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}
	return s, nil
}

func (s *Server) buildRouter(ctx context.Context) error {
	log := logger.FromContext(ctx)
	r := gin.New()
	r.Use(gin.Recovery())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware())
	}
	r.Use(LoggerMiddleware(log))
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(config.ContextWithConfig(c.Request.Context(), s.config))
		c.Next()
	})
	r.Use(appstate.StateMiddleware(s.state))
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	limit, err := s.rateLimiter(ctx)
	if err != nil {
		return err
	}
	RegisterRoutes(r, s.state, limit)
	s.router = r
	return nil
}

func (s *Server) rateLimiter(ctx context.Context) (gin.HandlerFunc, error) {
	rate, err := ratelimit.ParseRate(s.config.Server.RateLimit)
	if err != nil {
		return nil, err
	}
	if rate.Disabled {
		return nil, nil
	}
	cfg := ratelimit.DefaultConfig()
	cfg.GlobalRate = rate
	var manager *ratelimit.Manager
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		manager, err = ratelimit.NewManagerWithMetrics(ctx, cfg, s.redisClient, s.monitoring.Meter())
	} else {
		manager, err = ratelimit.NewManager(cfg, s.redisClient)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	logger.FromContext(ctx).Debug("Rate limiter initialized",
		"driver", manager.Driver(),
		"limit", rate.Limit,
		"period", rate.Period,
	)
	return manager.Middleware(), nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Address is the configured listen address.
func (s *Server) Address() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln and shuts down gracefully once ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.logStartupBanner(ctx, ln.Addr())
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Debug("Received shutdown signal, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// writeTimeout leaves room for a full pipeline run.
func (s *Server) writeTimeout() time.Duration {
	timeout := s.config.Server.Timeout
	if p := s.config.Pipeline.Timeout; p > timeout {
		timeout = p
	}
	if timeout <= 0 {
		return 0
	}
	return timeout + writeTimeoutSlack
}

func (s *Server) logStartupBanner(ctx context.Context, addr net.Addr) {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		host, port = s.config.Server.Host, strconv.Itoa(s.config.Server.Port)
	}
	base := fmt.Sprintf("http://%s", net.JoinHostPort(friendlyHost(host), port))
	fields := []any{
		"version", s.state.Version,
		"ask", base + routes.Ask(),
		"health", base + routes.Health(),
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		fields = append(fields, "metrics", base+s.monitoring.Path())
	}
	logger.FromContext(ctx).Info("HTTP server listening", fields...)
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
