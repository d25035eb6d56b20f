package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// RequestLogging logs one line per request with its outcome.
func RequestLogging(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set(fiber.HeaderXRequestID, requestID)

		chainErr := c.Next()
		if chainErr != nil {
			// Let the app error handler write the response so the logged
			// status is the one the client sees.
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error().Err(chainErr)
		case status >= 400:
			event = logger.Warn()
		}
		if user, ok := CurrentUser(c); ok {
			event = event.Str("user", user.Username)
		}
		event.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")

		return nil
	}
}

func generateRequestID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

// Recover turns panics into 500 responses and logs the stack.
func Recover(logger zerolog.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error().Str("path", c.Path()).Str("panic", fmt.Sprint(e)).Msg("recovered from panic")
		},
	})
}
