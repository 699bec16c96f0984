// Package httpapi is the HTTP/websocket surface spec.md §6 treats as an
// external collaborator: the dashboard, config upload, restart, and
// liveness endpoints.
package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/neoedge/gateway/internal/cache"
	gwws "github.com/neoedge/gateway/internal/websocket"
)

// Dependencies are the collaborators the HTTP surface delegates to.
type Dependencies struct {
	Cache        *cache.Cache
	Hub          *gwws.Hub
	ConfigPath   string
	StagingPath  string
	Log          *zap.Logger
	AppName      string
	AppVersion   string
	DashboardTpl string // rendered dashboard HTML, served verbatim by GET /
}

// New builds the fiber app with the routes and middleware stack the
// teacher's cmd/edgeflow/main.go registers (recover, request logger, cors).
func New(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: deps.AppName + " " + deps.AppVersion,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	h := &handler{deps: deps}

	app.Get("/", h.dashboard)
	app.Get("/healthz", h.healthz)
	app.Get("/api/tags", h.tags)
	app.Post("/upload_config", h.uploadConfig)
	app.Post("/restart", h.restart)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.handleWebsocket))

	return app
}
