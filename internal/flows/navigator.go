package flows

import (
	"github.com/gofiber/fiber/v2"
)

// HTMXNavigator records navigation for one fiber request. HTMX requests get
// HX-Redirect / HX-Refresh headers; plain form posts get a 303 redirect.
type HTMXNavigator struct {
	c       *fiber.Ctx
	target  string
	refresh bool
}

func NewHTMXNavigator(c *fiber.Ctx) *HTMXNavigator {
	return &HTMXNavigator{c: c}
}

func (n *HTMXNavigator) Push(path string) { n.target = path }

func (n *HTMXNavigator) Refresh() { n.refresh = true }

// Redirected reports whether Push or Refresh was called.
func (n *HTMXNavigator) Redirected() bool {
	return n.target != "" || n.refresh
}

// Finish writes the recorded navigation to the response.
func (n *HTMXNavigator) Finish() error {
	if n.c.Get("HX-Request") == "true" {
		switch {
		case n.target != "":
			n.c.Set("HX-Redirect", n.target)
		case n.refresh:
			n.c.Set("HX-Refresh", "true")
		}
		return n.c.SendStatus(fiber.StatusOK)
	}

	target := n.target
	if target == "" {
		target = n.c.OriginalURL()
	}
	return n.c.Redirect(target, fiber.StatusSeeOther)
}
