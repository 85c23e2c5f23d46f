package middleware

import (
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// GlobalRateLimiter creates a rate limiter for all API endpoints
func GlobalRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
		},
	})
}

// AuthRateLimiter limits sign-in attempts per IP: 5 per 15 minutes.
func AuthRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        5,
		Expiration: 15 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "signin:" + c.IP()
		},
		LimitReached: limitReached("Too many authentication attempts. Please try again in 15 minutes."),
	})
}

// RegistrationRateLimiter limits account creation per IP: 5 per hour.
// Loopback callers are skipped: the registration page posts to the API
// from the server itself.
func RegistrationRateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			ip := net.ParseIP(c.IP())
			return ip != nil && ip.IsLoopback()
		},
		Max:        5,
		Expiration: time.Hour,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "register:" + c.IP()
		},
		LimitReached: limitReached("Too many registration attempts. Please try again later."),
	})
}

// limitReached answers JSON callers with an envelope and HTMX forms with a fragment.
func limitReached(message string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Status(fiber.StatusTooManyRequests)
		if c.Get("HX-Request") == "true" {
			c.Set("Content-Type", "text/html")
			return c.SendString(`<div class="alert alert-error" role="alert">` + message + `</div>`)
		}
		return c.JSON(fiber.Map{"success": false, "message": message})
	}
}
