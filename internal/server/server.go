// Package server exposes the aggregated transfer feed over server-sent events.
package server

import (
	"bufio"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"stablestream/internal/metrics"
	"stablestream/internal/pipeline"
	"stablestream/internal/registry"
)

const defaultKeepalive = 3 * time.Second

// Config holds transport settings.
type Config struct {
	Listen        string
	Keepalive     time.Duration
	EnableMetrics bool
}

// Server serves the stream and info endpoints.
type Server struct {
	cfg      Config
	app      *fiber.App
	manager  *pipeline.Manager
	registry *registry.Registry
	metrics  *metrics.Metrics
	logger   *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

type errorResponse struct {
	Error string `json:"error"`
}

type networkResponse struct {
	registry.Network
	Streaming bool                     `json:"streaming"`
	Contracts []registry.TokenContract `json:"contracts"`
}

type healthResponse struct {
	Status          string   `json:"status"`
	PipelineRunning bool     `json:"pipeline_running"`
	Subscribers     int      `json:"subscribers"`
	Networks        []string `json:"networks"`
}

// New builds the fiber app and registers routes.
func New(cfg Config, manager *pipeline.Manager, reg *registry.Registry, m *metrics.Metrics, logger *zap.Logger) *Server {
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = defaultKeepalive
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:      cfg,
		manager:  manager,
		registry: reg,
		metrics:  m,
		logger:   logger,
		closing:  make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "stables",
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		ProxyHeader:           fiber.HeaderXForwardedFor,
	})
	app.Use(recover.New())

	api := app.Group("/api")
	api.Get("/stables", s.streamHandler)
	api.Get("/stables/:network", s.streamHandler)
	api.Get("/networks", s.networksHandler)
	app.Get("/healthz", s.healthHandler)
	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	s.app = app
	return s
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on cfg.Listen.
func (s *Server) Listen() error {
	s.logger.Info("listening", zap.String("addr", s.cfg.Listen))
	return s.app.Listen(s.cfg.Listen)
}

// Shutdown ends open streams with an error frame, stops the pipeline and
// closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	if err := s.manager.Stop(ctx); err != nil {
		s.logger.Warn("pipeline stop", zap.Error(err))
	}
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) streamHandler(c *fiber.Ctx) error {
	var networks []string
	if id := c.Params("network"); id != "" {
		if _, ok := s.registry.Network(id); !ok {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "unknown network: " + id})
		}
		networks = []string{id}
	}

	sub, err := s.manager.Attach(networks...)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownNetwork) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: err.Error()})
		}
		s.logger.Error("attach pipeline", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(errorResponse{Error: err.Error()})
	}

	remote := c.IP()
	logger := s.logger.With(zap.String("remote", remote), zap.Strings("networks", networks))

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
		logger.Info("client connected")

		sess := &session{
			sub:       sub,
			w:         w,
			keepalive: s.cfg.Keepalive,
			shutdown:  s.closing,
			logger:    logger,
			metrics:   s.metrics,
		}
		if err := sess.run(); err != nil {
			logger.Info("client disconnected", zap.Error(err))
			return
		}
		logger.Info("stream closed")
	}))
	return nil
}

func (s *Server) networksHandler(c *fiber.Ctx) error {
	streaming := make(map[string]bool)
	for _, id := range s.manager.Networks() {
		streaming[id] = true
	}

	networks := s.registry.Networks()
	out := make([]networkResponse, 0, len(networks))
	for _, network := range networks {
		out = append(out, networkResponse{
			Network:   network,
			Streaming: streaming[network.ID],
			Contracts: s.registry.Contracts(network.ID),
		})
	}
	return c.JSON(out)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	resp := healthResponse{
		Status:   "ok",
		Networks: s.manager.Networks(),
	}
	if h := s.manager.Current(); h != nil {
		resp.PipelineRunning = h.Running()
		resp.Subscribers = h.Subscribers()
	}
	return c.JSON(resp)
}
