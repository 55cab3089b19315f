package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// GmailSender sends emails as the authorized Gmail user.
type GmailSender struct {
	service   *gmail.Service
	fromEmail string
	fromName  string
	logger    *logging.Logger
	now       func() time.Time
}

// GmailConfig holds configuration for Gmail.
type GmailConfig struct {
	FromEmail string
	FromName  string
}

// NewGmailSender wraps an authorized Gmail API service.
func NewGmailSender(service *gmail.Service, cfg GmailConfig, logger *logging.Logger) *GmailSender {
	if service == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &GmailSender{
		service:   service,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
		now:       time.Now,
	}
}

// Send sends an email via the Gmail API.
func (s *GmailSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if s.service == nil {
		return "", fmt.Errorf("notify: gmail service not configured")
	}
	raw, err := s.buildMIME(msg)
	if err != nil {
		return "", fmt.Errorf("notify: gmail build message: %w", err)
	}

	sent, err := s.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		s.logger.Error("notify: gmail send failed", "error", err, "to", msg.To)
		return "", fmt.Errorf("notify: gmail send failed: %w", err)
	}

	s.logger.Info("notify: email sent via gmail", "to", msg.To, "subject", msg.Subject, "message_id", sent.Id)
	return sent.Id, nil
}

// buildMIME renders an RFC 2822 message with a plain text part and, when
// provided, an HTML alternative.
func (s *GmailSender) buildMIME(msg EmailMessage) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	to := (&mail.Address{Name: msg.ToName, Address: msg.To}).String()
	header("From", (&mail.Address{Name: s.fromName, Address: s.fromEmail}).String())
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	if msg.HTML == "" {
		header("Content-Type", `text/plain; charset="UTF-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(normalizeNewlines(msg.Body))
		return buf.Bytes(), nil
	}

	w := multipart.NewWriter(&buf)
	header("Content-Type", "multipart/alternative; boundary="+w.Boundary())
	buf.WriteString("\r\n")
	parts := []struct{ contentType, body string }{
		{`text/plain; charset="UTF-8"`, msg.Body},
		{`text/html; charset="UTF-8"`, msg.HTML},
	}
	for _, p := range parts {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(normalizeNewlines(p.body))); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "\r\n")
}

var _ EmailSender = (*GmailSender)(nil)
