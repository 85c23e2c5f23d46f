package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"

	"github.com/gaev-art/gain-grid/internal/auth"
	"github.com/gaev-art/gain-grid/internal/flows"
	"github.com/gaev-art/gain-grid/internal/forms"
	"github.com/gaev-art/gain-grid/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = parsePages("login.html", "register.html", "error.html", "dashboard.html")

func parsePages(pages ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		out[page] = template.Must(template.New(page).ParseFS(templateFS, "templates/layout.html", "templates/"+page))
	}
	return out
}

type pageData struct {
	Title         string
	Error         string
	Message       string
	Errors        map[string]string
	Values        any
	GoogleEnabled bool
	User          *auth.User
}

// PageHandler serves the server-rendered auth pages. Form posts go through a
// forms.Manager and then a flow, the same way for HTMX and plain posts.
type PageHandler struct {
	auth          *auth.Service
	secureCookies bool
	log           logrus.FieldLogger
}

func NewPageHandler(svc *auth.Service, secureCookies bool, log logrus.FieldLogger) *PageHandler {
	return &PageHandler{auth: svc, secureCookies: secureCookies, log: log.WithField("component", "pages")}
}

// render writes the full page, or only its "form" block for HTMX requests.
func (h *PageHandler) render(c *fiber.Ctx, status int, page string, data pageData) error {
	tmpl, ok := pageTemplates[page]
	if !ok {
		return fiber.NewError(fiber.StatusInternalServerError, "unknown page "+page)
	}
	name := "layout"
	if c.Get("HX-Request") == "true" {
		name = "form"
		// htmx only swaps 2xx responses.
		status = fiber.StatusOK
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		h.log.WithError(err).WithField("page", page).Error("Failed to render page")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to render page")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func (h *PageHandler) Home(c *fiber.Ctx) error {
	return c.Redirect(flows.DashboardPath, fiber.StatusSeeOther)
}

func (h *PageHandler) LoginPage(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "login.html", pageData{
		Title:         "Sign in",
		Message:       c.Query("message"),
		Values:        models.LoginRequest{},
		GoogleEnabled: h.auth.HasProvider(auth.ProviderGoogle),
	})
}

func (h *PageHandler) Login(c *fiber.Ctx) error {
	nav := flows.NewHTMXNavigator(c)
	flow := flows.NewSignIn(h.auth, nav)

	form, err := forms.New(forms.Options[models.LoginRequest]{
		Schema: forms.NewStructSchema[models.LoginRequest](),
		OnSubmit: func(ctx context.Context, creds models.LoginRequest) error {
			res := flow.SignIn(ctx, creds)
			if !res.Success {
				return errors.New(res.Error)
			}
			auth.SetSessionCookie(c, res.Session, h.secureCookies)
			return nil
		},
		Logger: h.log,
	})
	if err != nil {
		return err
	}
	if err := fillForm(c, form, "email", "password"); err != nil {
		return err
	}

	if form.HandleSubmit(c.UserContext()) && nav.Redirected() {
		return nav.Finish()
	}

	state := form.State()
	data := pageData{
		Title:         "Sign in",
		Errors:        state.Errors,
		Values:        models.LoginRequest{Email: state.Data.Email},
		GoogleEnabled: h.auth.HasProvider(auth.ProviderGoogle),
	}
	if authErr := flow.Error(); authErr != nil {
		data.Error = authErr.Message
	}
	return h.render(c, fiber.StatusUnprocessableEntity, "login.html", data)
}

func (h *PageHandler) RegisterPage(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "register.html", pageData{
		Title:  "Create account",
		Values: models.RegisterRequest{},
	})
}

func (h *PageHandler) Register(c *fiber.Ctx) error {
	nav := flows.NewHTMXNavigator(c)
	flow := flows.NewRegister(h.auth, nav)

	form, err := forms.New(forms.Options[models.RegisterRequest]{
		Schema: forms.NewStructSchema[models.RegisterRequest](),
		OnSubmit: func(ctx context.Context, data models.RegisterRequest) error {
			if res := flow.Register(ctx, data); !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
		Logger: h.log,
	})
	if err != nil {
		return err
	}
	if err := fillForm(c, form, "name", "email", "password", "confirmPassword"); err != nil {
		return err
	}

	if form.HandleSubmit(c.UserContext()) && nav.Redirected() {
		return nav.Finish()
	}

	state := form.State()
	data := pageData{
		Title:  "Create account",
		Errors: state.Errors,
		Values: models.RegisterRequest{Name: state.Data.Name, Email: state.Data.Email},
	}
	if authErr := flow.Error(); authErr != nil {
		data.Error = authErr.Message
	}
	return h.render(c, fiber.StatusUnprocessableEntity, "register.html", data)
}

func (h *PageHandler) Logout(c *fiber.Ctx) error {
	nav := flows.NewHTMXNavigator(c)
	flow := flows.NewSignIn(h.auth, nav)

	res := flow.SignOut(c.UserContext(), auth.TokenFromRequest(c))
	if !res.Success {
		return h.render(c, fiber.StatusInternalServerError, "error.html", pageData{
			Title: "Sign out failed",
			Error: flow.Error().Message,
		})
	}
	auth.ClearSessionCookie(c)
	return nav.Finish()
}

// ErrorPage explains an OAuth failure passed as ?error=<code>.
func (h *PageHandler) ErrorPage(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "error.html", pageData{
		Title: "Sign in failed",
		Error: auth.MessageFor(c.Query("error")),
	})
}

func (h *PageHandler) Dashboard(c *fiber.Ctx) error {
	res := h.auth.CurrentUser(c.UserContext(), auth.TokenFromRequest(c))
	if !res.Success {
		auth.ClearSessionCookie(c)
		return c.Redirect(flows.LoginPath, fiber.StatusSeeOther)
	}
	return h.render(c, fiber.StatusOK, "dashboard.html", pageData{
		Title: "Dashboard",
		User:  res.User,
	})
}

// fillForm copies the posted values into the form through UpdateField.
func fillForm[T any](c *fiber.Ctx, form *forms.Manager[T], fields ...string) error {
	for _, field := range fields {
		if err := form.UpdateField(field, c.FormValue(field)); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return nil
}
