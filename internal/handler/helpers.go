package handler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler/middleware"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/repository"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

var errUnauthenticated = errors.New("Unauthorized")

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// respondError maps service and repository errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a bare 500.
func respondError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var vErr *validator.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errorJSON(c, fiber.StatusBadRequest, vErr.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, errUnauthenticated):
		return errorJSON(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return errorJSON(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		return errorJSON(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAccountLocked):
		return errorJSON(c, fiber.StatusLocked, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrDuplicate):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		return errorJSON(c, fiber.StatusConflict, "insufficient stock")
	default:
		logger.ErrorContext(c.UserContext(), "request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// parseBody decodes and validates the request body. Errors are ready for respondError.
func parseBody(c *fiber.Ctx, v *validator.Validator, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: invalid request body", service.ErrInvalidInput)
	}
	return v.Validate(out)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// currentUser reads the caller set by the auth middleware.
func currentUser(c *fiber.Ctx) (uuid.UUID, bool) {
	return middleware.UserID(c)
}

// ErrorHandler is the app-wide fallback for errors handlers return unhandled.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
