package handlers

import (
	"strings"

	"content-unlock-service/metrics"
	"content-unlock-service/middleware"
	"content-unlock-service/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// AppOptions configures NewApp.
type AppOptions struct {
	GatewayToken   string
	AllowedOrigins []string // empty: no CORS headers
	Limiter        *middleware.RateLimiter
	Log            *zap.Logger
}

// NewApp wires the fiber application: metrics (unauthenticated), then the
// gateway token check on everything else, then the engine routes.
func NewApp(engine *services.Engine, opts AppOptions) *fiber.App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(2, 4)
	}

	app := fiber.New(fiber.Config{
		AppName:               "content-unlock-service",
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024,
	})
	app.Use(recover.New())
	app.Use(middleware.MetricsMiddleware())

	if len(opts.AllowedOrigins) > 0 {
		origins := make([]string, 0, len(opts.AllowedOrigins))
		for _, o := range opts.AllowedOrigins {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(origins, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-User-Roles",
			MaxAge:       86400,
		}))
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// 🔐 everything below comes from the messaging front-end only
	app.Use(middleware.GatewayAuthMiddleware(opts.GatewayToken, log))

	SetupEngineRoutes(app, engine, limiter, log)
	return app
}
