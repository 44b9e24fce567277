package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/example/stockroute/internal/metrics"
	"github.com/example/stockroute/internal/middleware"
)

// NewApp builds the fiber application with the shared middleware stack and
// every route registered.
func NewApp(d Deps, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      d.Config.App.Name,
		ErrorHandler: middleware.ErrorHandler(d.Log),
		BodyLimit:    10 << 20,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(d.Log, m))

	Register(app, d)
	return app
}
