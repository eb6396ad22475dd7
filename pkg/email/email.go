package email

import (
	"context"
	"log/slog"
)

// Sender delivers transactional email.
type Sender interface {
	// SendWelcomeEmail greets a newly registered user. role selects the copy.
	SendWelcomeEmail(ctx context.Context, to, name, role string) error
}

type Config struct {
	APIKey       string
	FromEmail    string
	FromName     string
	DashboardURL string
}

// NoopSender logs instead of sending. Used when email is disabled.
type NoopSender struct {
	logger *slog.Logger
}

func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) SendWelcomeEmail(ctx context.Context, to, name, role string) error {
	s.logger.DebugContext(ctx, "email disabled, skipping welcome email", "to", to, "role", role)
	return nil
}
