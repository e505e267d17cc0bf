package server

import (
	"harvester/internal/core/orchestrator"
	"harvester/internal/core/proxy"
	"harvester/internal/core/queue"
	"harvester/internal/core/ratelimit"
	"harvester/internal/health"
	"harvester/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	Scrape  *orchestrator.Handler
	Queue   *queue.Handler
	Proxies *proxy.Handler
	Limiter *ratelimit.Limiter
	Redis   *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	api.Post("/scrape", d.Scrape.HandleScrape)
	api.Post("/jobs", d.Scrape.HandleCreateJob)
	api.Get("/jobs/:jobId", d.Scrape.HandleGetJob)

	api.Post("/queue", d.Queue.HandleEnqueue)
	api.Get("/queue/stats", d.Queue.HandleStats)
	api.Patch("/queue/:jobId/priority", d.Queue.HandleSetPriority)

	api.Get("/proxies", d.Proxies.HandleList)
	api.Post("/proxies", d.Proxies.HandleAdd)
	api.Delete("/proxies/:id", d.Proxies.HandleRemove)
	api.Post("/proxies/failures/clear", d.Proxies.HandleClearFailures)

	api.Get("/ratelimit", func(c *fiber.Ctx) error {
		return c.JSON(d.Limiter.Status())
	})

	return healthHandler
}
