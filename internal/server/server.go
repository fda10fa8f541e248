package server

import (
	"context"
	"time"

	"ai-salescoach-be/internal/bootstrap"
	"ai-salescoach-be/internal/config"
	"ai-salescoach-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ErrorHandler: serverutils.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: cfg.App.CorsAllowedOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{
			"instance_id":     cfg.App.InstanceID,
			"active_sessions": container.Tracker.Count(),
		}))
	})

	// Routes
	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Server is running", map[string]interface{}{"port": s.cfg.App.Port})
	return s.app.Listen(":" + s.cfg.App.Port)
}

// Shutdown refuses new relay sessions, tells every live one the server is going
// away and waits for them to drain before stopping Fiber.
func (s *Server) Shutdown(ctx context.Context) error {
	canceled := s.container.Tracker.CancelAll()
	s.container.Logger.Info("Server", "Shutting down", map[string]interface{}{"sessions_canceled": canceled})

	if !s.container.Tracker.Wait(ctx) {
		s.container.Logger.Warn("Server", "Sessions still running at shutdown deadline", map[string]interface{}{
			"remaining": s.container.Tracker.Count(),
		})
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	api := app.Group("/api")

	c.VoiceRelayHandler.RegisterRoutes(api)
	c.VoiceController.RegisterRoutes(api, serverutils.NewJwtMiddleware(cfg.Auth.JWTSecret))
}
