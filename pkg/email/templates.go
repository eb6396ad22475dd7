package email

import (
	"fmt"
	"html"
)

func welcomeLine(role string) string {
	switch role {
	case "farmer":
		return "Add your first field and register its sensors to start tracking soil moisture, temperature and pH."
	case "customer":
		return "Browse fresh produce listed by local farmers in the marketplace."
	default:
		return "Sign in to get started."
	}
}

// WelcomeEmailTemplate renders the registration greeting. name is HTML-escaped.
func WelcomeEmailTemplate(name, role, dashboardURL string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Welcome to AquaguardAI</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
                    <tr>
                        <td style="padding: 40px 30px; text-align: center; background-color: #0E7490; border-radius: 8px 8px 0 0;">
                            <h1 style="margin: 0; color: #ffffff; font-size: 28px;">Welcome to AquaguardAI</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 40px 30px;">
                            <p style="margin: 0 0 20px; font-size: 16px; line-height: 24px; color: #333333;">Hi %s,</p>
                            <p style="margin: 0 0 20px; font-size: 16px; line-height: 24px; color: #333333;">%s</p>
                            <table role="presentation" style="margin: 30px 0;">
                                <tr>
                                    <td align="center">
                                        <a href="%s" style="display: inline-block; padding: 14px 40px; background-color: #0E7490; color: #ffffff; text-decoration: none; border-radius: 6px; font-size: 16px; font-weight: bold;">Open dashboard</a>
                                    </td>
                                </tr>
                            </table>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`, html.EscapeString(name), welcomeLine(role), html.EscapeString(dashboardURL))
}
