package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/experiences/experience-api/internal/bootstrap"
)

// RegisterRoutes registers all HTTP routes on the Fiber app.
// A handler panic is answered with a 500 instead of taking the process down.
func RegisterRoutes(app *fiber.App, handler *ExperienceHandler, checks []bootstrap.HealthCheck) {
	app.Use(recover.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(checks))

	v1 := app.Group("/api/v1")
	v1.Get("/experiences", handler.ListExperiences)
	v1.Get("/experiences/source/:source", handler.ListBySource)
	v1.Get("/experiences/details/:id", handler.GetDetails)
	v1.Get("/experiences/availability", handler.GetAvailability)
	v1.Get("/providers/status", handler.ProviderStatus)
}

func healthHandler(checks []bootstrap.HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		for _, hc := range checks {
			if err := hc.Check(healthCtx); err != nil {
				results[hc.Name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
