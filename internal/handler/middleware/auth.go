package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/guard"
)

// Locals keys set by AuthMiddleware.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
	LocalClaims = "claims"
	LocalToken  = "token"
)

type TokenValidator interface {
	ValidateToken(token string) (*domain.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates the RS256 token from the Authorization header or,
// failing that, the token cookie, and stores its claims in Locals.
func AuthMiddleware(tokens TokenValidator, revocations RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := extractToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing token",
			})
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		revoked, err := revocations.IsRevoked(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "failed to verify token status",
			})
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "token has been revoked",
			})
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalClaims, claims)
		c.Locals(LocalToken, token)

		return c.Next()
	}
}

// extractToken reports ok=false for a present but malformed Authorization header.
func extractToken(c *fiber.Ctx) (string, bool) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	return c.Cookies(guard.TokenCookie), true
}

func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(LocalUserID).(uuid.UUID)
	return id, ok
}

func Claims(c *fiber.Ctx) (*domain.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*domain.Claims)
	return claims, ok
}
