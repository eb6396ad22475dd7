package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Tlotliso-Khosi/AQUAGUARDPROJECT-sub001/internal/guard"
)

// AccessGuard redirects page requests based only on whether the token cookie
// is present. It never validates the token; API routes do that.
//
// Rules are matched against the decoded, dot-segment-free path that the
// static file server resolves, not the raw request path.
func AccessGuard(rules guard.Rules) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := rules.Decide(string(c.Context().URI().Path()), c.Cookies(guard.TokenCookie))
		if d.Allowed() {
			return c.Next()
		}
		return c.Redirect(d.Target, fiber.StatusFound)
	}
}
