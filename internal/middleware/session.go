package middleware

import (
	"fmt"
	"time"

	"catalog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// SessionCookie is the name of the opaque session cookie.
const SessionCookie = "catalog_session"

const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
	sessionRole     = "role"
	sessionFlash    = "flash"

	localsUser  = "user"
	localsFlash = "flash"
)

// Sessions keeps the signed-in identity in a server-side session. Only
// primitive values are stored so any session storage can encode them.
type Sessions struct {
	store *session.Store
}

func NewSessions(ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		store: session.New(session.Config{
			Expiration:     ttl,
			KeyLookup:      "cookie:" + SessionCookie,
			CookieHTTPOnly: true,
			CookieSecure:   secure,
			CookieSameSite: fiber.CookieSameSiteLaxMode,
		}),
	}
}

// SignIn binds user to a fresh session id.
func (s *Sessions) SignIn(c *fiber.Ctx, user models.SafeUser) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := sess.Regenerate(); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}
	sess.Set(sessionUserID, user.ID)
	sess.Set(sessionUsername, user.Username)
	sess.Set(sessionRole, string(user.Role))
	if err := sess.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	c.Locals(localsUser, user)
	return nil
}

// SignOut destroys the session.
func (s *Sessions) SignOut(c *fiber.Ctx) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	return sess.Destroy()
}

// Flash stores a one-time message shown on the next rendered page.
func (s *Sessions) Flash(c *fiber.Ctx, message string) error {
	sess, err := s.store.Get(c)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	sess.Set(sessionFlash, message)
	return sess.Save()
}

// Load exposes the signed-in user and any pending flash message to the
// handlers of this request.
func (s *Sessions) Load() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := s.store.Get(c)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}

		id, _ := sess.Get(sessionUserID).(string)
		if id != "" {
			username, _ := sess.Get(sessionUsername).(string)
			role, _ := sess.Get(sessionRole).(string)
			c.Locals(localsUser, models.SafeUser{ID: id, Username: username, Role: models.Role(role)})
		}

		if flash, ok := sess.Get(sessionFlash).(string); ok {
			c.Locals(localsFlash, flash)
			sess.Delete(sessionFlash)
			if err := sess.Save(); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
		}
		return c.Next()
	}
}

// CurrentUser returns the identity attached by Load or AuthRequired.
func CurrentUser(c *fiber.Ctx) (models.SafeUser, bool) {
	user, ok := c.Locals(localsUser).(models.SafeUser)
	return user, ok
}

// FlashMessage returns the flash message popped by Load, if any.
func FlashMessage(c *fiber.Ctx) string {
	msg, _ := c.Locals(localsFlash).(string)
	return msg
}
