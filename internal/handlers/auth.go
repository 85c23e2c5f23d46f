package handlers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gaev-art/gain-grid/internal/auth"
	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/flows"
	"github.com/gaev-art/gain-grid/internal/forms"
	"github.com/gaev-art/gain-grid/internal/models"
	"github.com/gaev-art/gain-grid/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// UserRegistry is the user persistence the registration endpoint needs.
// services.CachedRepository implements it.
type UserRegistry interface {
	GetUserByEmail(ctx context.Context, email string) (*models.UserCache, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.UserCache, error)
}

type AuthHandler struct {
	users         UserRegistry
	auth          *auth.Service
	schema        forms.Schema[models.RegisterRequest]
	secureCookies bool
	log           logrus.FieldLogger
}

func NewAuthHandler(users UserRegistry, svc *auth.Service, secureCookies bool, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		users:         users,
		auth:          svc,
		schema:        forms.NewStructSchema[models.RegisterRequest](),
		secureCookies: secureCookies,
		log:           log.WithField("component", "auth_handler"),
	}
}

// Register creates a credentials account. Responses are deliberately opaque
// so the endpoint cannot be used to probe which emails exist; the reason is
// only logged.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		h.log.WithError(err).Warn("Registration body could not be parsed")
		return registerFailed(c, fiber.StatusBadRequest)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = validation.NormalizeEmail(req.Email)
	log := h.log.WithField("email", req.Email)

	if errs := h.schema.Validate(req); len(errs) > 0 {
		log.WithField("errors", errs).Info("Registration rejected by validation")
		return registerFailed(c, fiber.StatusBadRequest)
	}

	_, err := h.users.GetUserByEmail(c.Context(), req.Email)
	switch {
	case err == nil:
		log.Info("Registration for an existing email")
		return registerFailed(c, fiber.StatusBadRequest)
	case !errors.Is(err, database.ErrNotFound):
		log.WithError(err).Error("Failed to look up user during registration")
		return registerFailed(c, fiber.StatusInternalServerError)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return registerFailed(c, fiber.StatusInternalServerError)
	}

	user, err := h.users.CreateUser(c.Context(), database.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
	})
	if errors.Is(err, database.ErrDuplicateEmail) {
		log.Info("Registration lost a race for an existing email")
		return registerFailed(c, fiber.StatusBadRequest)
	}
	if err != nil {
		log.WithError(err).Error("Failed to create user")
		return registerFailed(c, fiber.StatusInternalServerError)
	}

	log.WithField("user_id", user.ID).Info("User registered")
	return c.Status(fiber.StatusCreated).JSON(models.Envelope{Success: true})
}

func registerFailed(c *fiber.Ctx, status int) error {
	return c.Status(status).JSON(models.Envelope{Success: false})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.Envelope{Message: "Invalid request body"})
	}

	res := h.auth.Login(c.Context(), req)
	if !res.Success {
		return c.Status(fiber.StatusUnauthorized).JSON(models.Envelope{Message: res.Error})
	}

	auth.SetSessionCookie(c, res.Session, h.secureCookies)
	return c.JSON(models.LoginResponse{
		Success:   true,
		Token:     res.Session.Token,
		User:      *res.User,
		ExpiresAt: res.Session.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	res := h.auth.Logout(c.Context(), auth.TokenFromRequest(c))
	if !res.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(models.Envelope{Message: res.Error})
	}
	auth.ClearSessionCookie(c)
	return c.JSON(models.Envelope{Success: true})
}

func (h *AuthHandler) Session(c *fiber.Ctx) error {
	token := auth.TokenFromRequest(c)
	if token == "" {
		return c.JSON(models.SessionResponse{})
	}
	res := h.auth.CurrentUser(c.Context(), token)
	if !res.Success {
		return c.JSON(models.SessionResponse{})
	}
	return c.JSON(models.SessionResponse{Authenticated: true, User: res.User})
}

// ProviderSignIn redirects the browser to the provider's consent screen.
func (h *AuthHandler) ProviderSignIn(c *fiber.Ctx) error {
	authURL, res := h.auth.BeginProviderLogin(c.Context(), c.Params("provider"))
	if !res.Success {
		return redirectToError(c, res)
	}
	return c.Redirect(authURL, fiber.StatusFound)
}

// ProviderCallback finishes an OAuth sign-in and starts the session.
func (h *AuthHandler) ProviderCallback(c *fiber.Ctx) error {
	nav := flows.NewHTMXNavigator(c)
	flow := flows.NewSignIn(h.auth, nav)

	res := flow.SignInWithGoogle(c.Context(), c.Params("provider"), auth.CallbackParams{
		State: c.Query("state"),
		Code:  c.Query("code"),
		Error: c.Query("error"),
	})
	if !res.Success {
		return redirectToError(c, res)
	}

	auth.SetSessionCookie(c, res.Session, h.secureCookies)
	return nav.Finish()
}

func redirectToError(c *fiber.Ctx, res auth.Result) error {
	code := res.Code
	if code == "" {
		code = "Default"
	}
	return c.Redirect("/auth/error?"+url.Values{"error": {code}}.Encode(), fiber.StatusSeeOther)
}
