package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/domain"
)

// RequireRole lets the request through when the token's role is one of roles.
// Admins pass every check.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(domain.Role)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if role == domain.RoleAdmin {
			return c.Next()
		}
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":          "Forbidden: insufficient permissions",
			"required_roles": roles,
		})
	}
}
