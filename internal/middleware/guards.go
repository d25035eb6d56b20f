package middleware

import (
	"strings"

	"catalog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// LoginPath is where unauthenticated browser requests are sent.
const LoginPath = "/auth/login"

// IsAPIRequest reports whether the client expects JSON rather than a page.
func IsAPIRequest(c *fiber.Ctx) bool {
	p := c.Path()
	if strings.HasPrefix(p, "/api/") || strings.Contains(p, "/api/") || p == "/auth/me" {
		return true
	}
	accept := c.Get(fiber.HeaderAccept)
	return strings.Contains(accept, fiber.MIMEApplicationJSON) && !strings.Contains(accept, fiber.MIMETextHTML)
}

// RequireAuth lets signed-in users through. Browsers are redirected to the
// login page, API clients get 401.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); ok {
			return c.Next()
		}
		if IsAPIRequest(c) {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		return c.Redirect(LoginPath, fiber.StatusSeeOther)
	}
}

// RequireRole lets through signed-in users holding role.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return RequireAuth()(c)
		}
		if user.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "you do not have permission to perform this action")
		}
		return c.Next()
	}
}

// RequireAdmin is RequireRole(models.RoleAdmin).
func RequireAdmin() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}
