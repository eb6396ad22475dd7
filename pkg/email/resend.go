package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type ResendSender struct {
	client *resend.Client
	config Config
	logger *slog.Logger
}

func NewResendSender(cfg Config, logger *slog.Logger) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("resend API key is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("from email is required")
	}

	return &ResendSender{
		client: resend.NewClient(cfg.APIKey),
		config: cfg,
		logger: logger,
	}, nil
}

func (s *ResendSender) SendWelcomeEmail(ctx context.Context, to, name, role string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail),
		To:      []string{to},
		Subject: "Welcome to AquaguardAI",
		Html:    WelcomeEmailTemplate(name, role, s.config.DashboardURL),
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		s.logger.ErrorContext(ctx, "welcome email failed", "to", to, "error", err)
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.logger.InfoContext(ctx, "welcome email sent", "to", to, "id", sent.Id)
	return nil
}
