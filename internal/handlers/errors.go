package handlers

import (
	"errors"

	"catalog/internal/middleware"
	"catalog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const genericErrorMessage = "something went wrong, please try again later"

// StatusFor maps an error to the HTTP status and the message safe to show.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case models.IsNotFound(err):
		return fiber.StatusNotFound, err.Error()
	case models.IsValidation(err):
		return fiber.StatusBadRequest, err.Error()
	case models.IsDuplicateName(err), models.IsCategoryInUse(err):
		return fiber.StatusConflict, err.Error()
	case models.IsAuthentication(err):
		return fiber.StatusUnauthorized, err.Error()
	default:
		return fiber.StatusInternalServerError, genericErrorMessage
	}
}

// ErrorHandler is the application-wide fiber error handler. Unexpected
// errors are logged with their cause and reported with a generic message.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
		}

		if middleware.IsAPIRequest(c) {
			return c.Status(status).JSON(fiber.Map{
				"success": false,
				"message": message,
			})
		}

		renderErr := render(c, status, "error", fiber.Map{
			"Title":   "Error",
			"Status":  status,
			"Message": message,
		})
		if renderErr != nil {
			log.Error().Err(renderErr).Msg("failed to render error page")
			return c.Status(status).SendString(message)
		}
		return nil
	}
}

// formErrors returns the status and messages of a business error that should
// re-render the submitted form. ok is false for anything else.
func formErrors(err error) (status int, messages []string, ok bool) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Messages, true
	case models.IsDuplicateName(err), models.IsCategoryInUse(err):
		return fiber.StatusConflict, []string{err.Error()}, true
	default:
		return 0, nil, false
	}
}
