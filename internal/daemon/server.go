package daemon

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"

	"github.com/Mayores-04/my-messaging-app/internal/gateway"
)

// Server manages the HTTP server lifecycle for the daemon.
type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
}

// NewServer builds the fiber app with middleware and all gateway routes.
func NewServer(cfg ServerConfig, gw *gateway.Gateway, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "msgd",
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New())
	gw.Register(app)

	return &Server{app: app, addr: cfg.ListenAddr, logger: logger}
}

// ServerConfig is the subset of the daemon config the server needs.
type ServerConfig struct {
	ListenAddr string
}

// Start begins serving HTTP requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Warn("shutdown error", zap.Error(err))
	}
}
