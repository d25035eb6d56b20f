package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog/internal/middleware"
	"catalog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	t.Fatalf("response carries no %s cookie", middleware.SessionCookie)
	return nil
}

func newSessionApp(sessions *middleware.Sessions) *fiber.App {
	app := fiber.New()
	app.Use(sessions.Load())
	app.Post("/signin", func(c *fiber.Ctx) error {
		return sessions.SignIn(c, models.SafeUser{ID: "u-1", Username: "alice", Role: models.RoleAdmin})
	})
	app.Post("/flash", func(c *fiber.Ctx) error {
		return sessions.Flash(c, "saved")
	})
	app.Post("/signout", func(c *fiber.Ctx) error {
		return sessions.SignOut(c)
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		user, ok := middleware.CurrentUser(c)
		return c.JSON(fiber.Map{"signedIn": ok, "user": user, "flash": middleware.FlashMessage(c)})
	})
	return app
}

type whoami struct {
	SignedIn bool            `json:"signedIn"`
	User     models.SafeUser `json:"user"`
	Flash    string          `json:"flash"`
}

func getWhoami(t *testing.T, app *fiber.App, cookie *http.Cookie) whoami {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out whoami
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSessions_SignInFlashSignOut(t *testing.T) {
	app := newSessionApp(middleware.NewSessions(time.Hour, false))

	assert.False(t, getWhoami(t, app, nil).SignedIn)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/signin", nil))
	require.NoError(t, err)
	cookie := sessionCookie(t, resp)
	assert.True(t, cookie.HttpOnly)

	me := getWhoami(t, app, cookie)
	assert.True(t, me.SignedIn)
	assert.Equal(t, "alice", me.User.Username)
	assert.Equal(t, models.RoleAdmin, me.User.Role)

	req := httptest.NewRequest(http.MethodPost, "/flash", nil)
	req.AddCookie(cookie)
	_, err = app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "saved", getWhoami(t, app, cookie).Flash)
	assert.Empty(t, getWhoami(t, app, cookie).Flash)

	req = httptest.NewRequest(http.MethodPost, "/signout", nil)
	req.AddCookie(cookie)
	_, err = app.Test(req)
	require.NoError(t, err)

	assert.False(t, getWhoami(t, app, cookie).SignedIn)
}

func withUser(user *models.SafeUser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if user != nil {
			c.Locals("user", *user)
		}
		return c.Next()
	}
}

func TestGuards(t *testing.T) {
	admin := &models.SafeUser{ID: "1", Username: "root", Role: models.RoleAdmin}
	staff := &models.SafeUser{ID: "2", Username: "clerk", Role: models.RoleStaff}

	tests := []struct {
		name       string
		user       *models.SafeUser
		path       string
		accept     string
		wantStatus int
		wantLoc    string
	}{
		{"anonymous page redirects", nil, "/products", "text/html", fiber.StatusSeeOther, "/auth/login"},
		{"anonymous api gets 401", nil, "/products/api/inventory-stats", "", fiber.StatusUnauthorized, ""},
		{"anonymous json client gets 401", nil, "/products", "application/json", fiber.StatusUnauthorized, ""},
		{"staff reads", staff, "/products", "text/html", fiber.StatusOK, ""},
		{"staff blocked from admin route", staff, "/admin", "text/html", fiber.StatusForbidden, ""},
		{"admin allowed", admin, "/admin", "text/html", fiber.StatusOK, ""},
		{"anonymous admin route redirects", nil, "/admin", "text/html", fiber.StatusSeeOther, "/auth/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(withUser(tt.user))
			ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
			app.Get("/products", middleware.RequireAuth(), ok)
			app.Get("/products/api/inventory-stats", middleware.RequireAuth(), ok)
			app.Get("/admin", middleware.RequireAdmin(), ok)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLoc != "" {
				assert.Equal(t, tt.wantLoc, resp.Header.Get("Location"))
			}
		})
	}
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*models.SafeUser, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &models.SafeUser{ID: "u-1", Username: "api", Role: models.RoleStaff}, nil
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	app.Get("/api/v1/me", middleware.AuthRequired(fakeValidator{}, zerolog.Nop()), func(c *fiber.Ctx) error {
		user, _ := middleware.CurrentUser(c)
		return c.SendString(user.Username)
	})

	tests := []struct {
		header     string
		wantStatus int
	}{
		{"", fiber.StatusUnauthorized},
		{"Token good", fiber.StatusUnauthorized},
		{"Bearer bad", fiber.StatusUnauthorized},
		{"Bearer good", fiber.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.wantStatus, resp.StatusCode, tt.header)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(rate.Every(time.Hour), 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	app := fiber.New()
	app.Post("/auth/login", middleware.NewRateLimiter(rate.Every(time.Hour), 1).Middleware(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestPerMinute(t *testing.T) {
	assert.InDelta(t, 0.5, float64(middleware.PerMinute(30)), 1e-9)
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(middleware.RequestLogging(zerolog.New(&buf)))
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, float64(404), line["status"])
	assert.Equal(t, "/missing", line["path"])
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Recover(zerolog.New(&buf)))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, buf.String(), "kaboom")
}
