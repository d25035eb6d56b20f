package handlers

import (
	"catalog/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

const layout = "layouts/main"

// render adds the signed-in user and the pending flash message to data and
// renders view inside the main layout.
func render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if user, ok := middleware.CurrentUser(c); ok {
		data["User"] = user
		data["IsAdmin"] = user.IsAdmin()
	}
	if flash := middleware.FlashMessage(c); flash != "" {
		data["Flash"] = flash
	}
	return c.Status(status).Render(view, data, layout)
}

// redirect answers a successful state change.
func redirect(c *fiber.Ctx, location string) error {
	return c.Redirect(location, fiber.StatusSeeOther)
}
