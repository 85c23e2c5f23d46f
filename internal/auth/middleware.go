package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	UserIDKey  = "user_id"
	CookieName = "auth_token"
	LoginPath  = "/auth/login"
)

// TokenFromRequest reads the session token from a Bearer header, falling
// back to the session cookie.
func TokenFromRequest(c *fiber.Ctx) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return ""
		}
		return tokenParts[1]
	}
	return c.Cookies(CookieName)
}

func AuthMiddleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Authentication required",
			})
		}

		claims, err := svc.Verify(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid or expired token",
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		return c.Next()
	}
}

// PageMiddleware sends signed-out browsers to the login page.
func PageMiddleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := TokenFromRequest(c)
		if token == "" {
			return redirectToLogin(c)
		}
		claims, err := svc.Verify(c.Context(), token)
		if err != nil {
			// Keep the cookie when the check itself failed; it may still be good.
			if errors.Is(err, ErrInvalidToken) {
				ClearSessionCookie(c)
			}
			return redirectToLogin(c)
		}

		c.Locals(UserIDKey, claims.UserID)
		return c.Next()
	}
}

func redirectToLogin(c *fiber.Ctx) error {
	if c.Get("HX-Request") == "true" {
		c.Set("HX-Redirect", LoginPath)
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	return c.Redirect(LoginPath, fiber.StatusSeeOther)
}

func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userID := c.Locals(UserIDKey)
	if userID == nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
	}

	id, ok := userID.(uuid.UUID)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusInternalServerError, "Invalid user ID type")
	}

	return id, nil
}

// SetSessionCookie stores the session token. Secure should be on whenever
// the site is served over HTTPS.
func SetSessionCookie(c *fiber.Ctx, session *Session, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    session.Token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
	})
}

func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
