package handlers

import (
	"fmt"
	"strings"

	"catalog/internal/middleware"
	"catalog/internal/models"
	"catalog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// AuthHandler handles sign-in, registration and account requests.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *middleware.Sessions
	loginLimit  fiber.Handler
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. loginLimit guards the login
// submission and may be nil.
func NewAuthHandler(authService *services.AuthService, sessions *middleware.Sessions, loginLimit fiber.Handler, log zerolog.Logger) *AuthHandler {
	if loginLimit == nil {
		loginLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		loginLimit:  loginLimit,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Get("/login", h.LoginPage)
	authRoutes.Post("/login", h.loginLimit, h.HandleLogin)
	authRoutes.Get("/logout", h.HandleLogout)
	authRoutes.Get("/register", h.RegisterPage)
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Get("/password", middleware.RequireAuth(), h.PasswordPage)
	authRoutes.Post("/password", middleware.RequireAuth(), h.HandleChangePassword)
	authRoutes.Get("/me", middleware.RequireAuth(), h.Me)
	authRoutes.Get("/api/users", middleware.RequireAdmin(), h.ListUsers)
}

func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	if _, ok := middleware.CurrentUser(c); ok {
		return redirect(c, "/products")
	}
	return h.renderLogin(c, fiber.StatusOK, models.LoginForm{}, nil)
}

// HandleLogin signs the user in. Failures re-render the form with the
// username kept and the password cleared.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var form models.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}
	form.Username = strings.TrimSpace(form.Username)

	if messages := models.ValidateLogin(form); len(messages) > 0 {
		return h.renderLogin(c, fiber.StatusBadRequest, models.LoginForm{Username: form.Username}, messages)
	}

	user, err := h.authService.Login(c.UserContext(), form.Username, form.Password)
	if err != nil {
		if models.IsAuthentication(err) {
			h.log.Info().Str("username", form.Username).Str("ip", c.IP()).Msg("login failed")
			return h.renderLogin(c, fiber.StatusUnauthorized, models.LoginForm{Username: form.Username}, []string{err.Error()})
		}
		return err
	}

	if err := h.sessions.SignIn(c, *user); err != nil {
		return err
	}
	// SignIn regenerated the session id; touching the session again in this
	// request would resurrect the old id, so no flash here.
	h.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user signed in")
	return redirect(c, "/products")
}

func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.sessions.SignOut(c); err != nil {
		return err
	}
	return redirect(c, middleware.LoginPath)
}

func (h *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	return h.renderRegister(c, fiber.StatusOK, models.RegisterForm{Role: string(models.RoleStaff)}, nil)
}

// HandleRegister creates an account. Only a signed-in admin may pick the
// role; everyone else registers as staff.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var form models.RegisterForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	current, signedIn := middleware.CurrentUser(c)
	byAdmin := signedIn && current.IsAdmin()
	if !byAdmin {
		form.Role = string(models.RoleStaff)
	}

	user, err := h.authService.Register(c.UserContext(), form)
	if err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderRegister(c, status, models.RegisterForm{Username: form.Username, Role: form.Role}, messages)
		}
		return err
	}

	if byAdmin {
		h.flash(c, fmt.Sprintf("User %q created as %s", user.Username, user.Role))
		return redirect(c, "/products")
	}
	return redirect(c, middleware.LoginPath+"?registered=true")
}

func (h *AuthHandler) PasswordPage(c *fiber.Ctx) error {
	return h.renderPassword(c, fiber.StatusOK, nil)
}

func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	user, _ := middleware.CurrentUser(c)

	var form models.PasswordChangeForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid form data")
	}

	if err := h.authService.ChangePassword(c.UserContext(), user.ID, form); err != nil {
		if status, messages, ok := formErrors(err); ok {
			return h.renderPassword(c, status, messages)
		}
		return err
	}

	h.flash(c, "Password changed successfully")
	return redirect(c, "/products")
}

// Me returns the signed-in user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	current, _ := middleware.CurrentUser(c)
	user, err := h.authService.GetUserByID(c.UserContext(), current.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// ListUsers returns every user, or only those with the role given in ?role=.
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	var (
		users []models.SafeUser
		err   error
	)
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		users, err = h.authService.GetUsersByRole(c.UserContext(), models.Role(role))
	} else {
		users, err = h.authService.GetAllUsers(c.UserContext())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

func (h *AuthHandler) renderLogin(c *fiber.Ctx, status int, form models.LoginForm, errs []string) error {
	return render(c, status, "auth/login", fiber.Map{
		"Title":      "Log in",
		"Form":       form,
		"Errors":     errs,
		"Registered": c.Query("registered") == "true",
	})
}

func (h *AuthHandler) renderRegister(c *fiber.Ctx, status int, form models.RegisterForm, errs []string) error {
	current, ok := middleware.CurrentUser(c)
	return render(c, status, "auth/register", fiber.Map{
		"Title":         "Register",
		"Form":          form,
		"Errors":        errs,
		"CanChooseRole": ok && current.IsAdmin(),
	})
}

func (h *AuthHandler) renderPassword(c *fiber.Ctx, status int, errs []string) error {
	return render(c, status, "auth/password", fiber.Map{
		"Title":  "Change password",
		"Errors": errs,
	})
}

func (h *AuthHandler) flash(c *fiber.Ctx, message string) {
	if err := h.sessions.Flash(c, message); err != nil {
		h.log.Warn().Err(err).Msg("failed to store flash message")
	}
}
