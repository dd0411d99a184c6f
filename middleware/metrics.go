// middleware/metrics.go
package middleware

import (
	"time"

	"content-unlock-service/metrics"

	"github.com/gofiber/fiber/v2"
)

// MetricsMiddleware records request latency by route pattern.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		metrics.ObserveHTTP(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
