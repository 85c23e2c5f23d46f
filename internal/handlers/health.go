package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gaev-art/gain-grid/internal/services"

	"github.com/gofiber/fiber/v2"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports database and cache status. Only the database is required;
// without the cache the app runs uncached and sessions cannot be revoked.
func Health(db, cache pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		status := fiber.Map{"status": "ok", "database": "ok", "cache": "ok"}
		code := fiber.StatusOK

		if err := db.Ping(ctx); err != nil {
			status["status"] = "unavailable"
			status["database"] = err.Error()
			code = fiber.StatusServiceUnavailable
		}
		if err := cache.Ping(ctx); errors.Is(err, services.ErrCacheDisabled) {
			status["cache"] = "disabled"
		} else if err != nil {
			status["cache"] = err.Error()
		}
		return c.Status(code).JSON(status)
	}
}
