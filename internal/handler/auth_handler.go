package handler

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/guard"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/handler/middleware"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/service"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/pkg/validator"
)

type AuthHandler struct {
	authService  *service.AuthService
	validator    *validator.Validator
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, validator *validator.Validator, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		validator:    validator,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Register creates a farmer or customer account
// POST /api/register, POST /api/signup
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	user, err := h.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// Login verifies credentials and sets the session cookie the access guard looks for
// POST /api/login, POST /api/user/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.setTokenCookie(c, resp.Token, resp.ExpiresAt)
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Logout revokes the current token and clears the cookie
// POST /api/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(middleware.LocalToken).(string)
	claims, ok := middleware.Claims(c)
	if !ok || token == "" {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.authService.Logout(c.UserContext(), token, expiresAt); err != nil {
		return respondError(c, h.logger, err)
	}

	h.setTokenCookie(c, "", time.Unix(0, 0))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

// Me returns the signed-in user
// GET /api/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	user, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) setTokenCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     guard.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
