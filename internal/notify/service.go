package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/templates"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// ErrNoRecipient is returned when a notification has no email address.
var ErrNoRecipient = fmt.Errorf("notify: recipient email required")

// Notification is a templated email to a client.
type Notification struct {
	To       string
	ToName   string
	Subject  string
	Template string
	Data     templates.Context
}

// Service renders studio notifications and hands them to an EmailSender.
type Service struct {
	email    EmailSender
	renderer templates.Renderer
	business config.Business
	logger   *logging.Logger
}

// NewService creates a notification service. The business block is added
// to every template context.
func NewService(email EmailSender, renderer templates.Renderer, business config.Business, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:    email,
		renderer: renderer,
		business: business,
		logger:   logger,
	}
}

// Notify renders n.Template and sends it, returning the provider message id.
func (s *Service) Notify(ctx context.Context, n Notification) (string, error) {
	if strings.TrimSpace(n.To) == "" {
		return "", ErrNoRecipient
	}
	if s.email == nil || s.renderer == nil {
		return "", fmt.Errorf("notify: service not configured")
	}
	n.Data.Business = s.business

	body, err := s.renderer.Render(n.Template, n.Data)
	if err != nil {
		s.logger.Error("notify: render failed", "template", n.Template, "error", err)
		return "", fmt.Errorf("notify: render %s: %w", n.Template, err)
	}

	id, err := s.email.Send(ctx, EmailMessage{
		To:      strings.TrimSpace(n.To),
		ToName:  n.ToName,
		Subject: n.Subject,
		Body:    body,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ConfirmationSubject is the subject line of a booking confirmation.
func ConfirmationSubject(sessionType string) string {
	return "Appointment Confirmed - " + sessionType
}

// CancellationSubject is the subject line of a cancellation notice.
func CancellationSubject(sessionType string) string {
	return "Appointment Cancelled - " + sessionType
}

// ReminderSubject is the subject line of a reminder.
func ReminderSubject(sessionType, timeUntil string) string {
	return fmt.Sprintf("Reminder: %s in %s", sessionType, timeUntil)
}
