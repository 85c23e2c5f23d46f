package handlers

import (
	"github.com/gaev-art/gain-grid/internal/auth"
	"github.com/gaev-art/gain-grid/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Routes groups the handlers mounted on the app. Limiters are optional.
type Routes struct {
	Auth    *AuthHandler
	Pages   *PageHandler
	Avatars *AvatarHandler
	Service *auth.Service
	Health  fiber.Handler

	SignInLimiter   fiber.Handler
	RegisterLimiter fiber.Handler
}

func (r Routes) Mount(app *fiber.App) {
	signInLimit := orNext(r.SignInLimiter)
	registerLimit := orNext(r.RegisterLimiter)

	app.Get("/health", r.Health)
	app.Get("/", r.Pages.Home)

	api := app.Group("/api", middleware.NoStore())

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", registerLimit, r.Auth.Register)
	authGroup.Post("/login", signInLimit, r.Auth.Login)
	authGroup.Post("/logout", r.Auth.Logout)
	authGroup.Get("/session", r.Auth.Session)
	authGroup.Get("/signin/:provider", signInLimit, r.Auth.ProviderSignIn)
	authGroup.Get("/callback/:provider", r.Auth.ProviderCallback)

	// Protected routes
	protected := api.Group("", auth.AuthMiddleware(r.Service))
	protected.Get("/users/me/avatar", r.Avatars.Me)

	pages := app.Group("/auth", middleware.NoStore())
	pages.Get("/login", r.Pages.LoginPage)
	pages.Post("/login", signInLimit, r.Pages.Login)
	pages.Get("/register", r.Pages.RegisterPage)
	pages.Post("/register", registerLimit, r.Pages.Register)
	pages.Post("/logout", r.Pages.Logout)
	pages.Get("/error", r.Pages.ErrorPage)

	app.Get("/dashboard", middleware.NoStore(), auth.PageMiddleware(r.Service), r.Pages.Dashboard)
}

func orNext(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}
