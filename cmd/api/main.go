package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-helpdesk/internal/common/api"
	"go-helpdesk/internal/config"
	"go-helpdesk/internal/features/export"
	"go-helpdesk/internal/features/notify"
	"go-helpdesk/internal/features/refresh"
	"go-helpdesk/internal/features/report"
	"go-helpdesk/internal/features/system"
	"go-helpdesk/internal/logger"
	"go-helpdesk/internal/middleware"
	"go-helpdesk/internal/upstream"
	"go-helpdesk/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Upstream compute backend client
			upstream.NewClient,

			// Initialize Services
			export.NewExporter,
			notify.NewHub,
			report.NewReportService,
			refresh.NewRefreshService,

			// Interface Adapters to satisfy Fx
			func(c *upstream.Client) report.Upstream { return c },
			func(e *export.Exporter) report.Exporter { return e },
			func(h *notify.Hub) report.Notifier { return h },

			// Initialize Controller
			report.NewReportController,
			notify.NewWebSocketController,

			// Initialize API Routes
			AsRoute(report.NewReportApi),
			AsRoute(notify.NewWebSocketApi),
			AsRoute(system.NewHealthApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(lc fx.Lifecycle, refreshService refresh.RefreshService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return refreshService.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return refreshService.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
