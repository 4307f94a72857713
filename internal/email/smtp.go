package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPEmailService sends emails via SMTP. Works with Mailhog in
// development (no auth) and any authenticated SMTP relay in production.
type SMTPEmailService struct {
	config   SMTPConfig
	baseURL  string
	template *template.Template
	logger   *slog.Logger
}

// limitReachedHTML is the single notification template. Inlined rather
// than loaded from disk because this service ships no other templates.
const limitReachedHTML = `<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <p>Hi {{.Name}},</p>
  <p>You've used all <strong>{{.Limit}}</strong> thumbnail generations included
  in your <strong>{{.Tier}}</strong> plan this month.</p>
  <p>Your allowance resets at the start of next month. If you need more
  thumbnails now, you can <a href="{{.UpgradeURL}}">upgrade your plan</a>.</p>
  <p>Thanks,<br>The Thumbgate Team</p>
</body>
</html>`

// NewSMTPEmailService creates a new SMTP-based email service.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	tmpl, err := template.New("limit_reached").Parse(limitReachedHTML)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	return &SMTPEmailService{
		config:   config,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		template: tmpl,
		logger:   logger,
	}, nil
}

// SendLimitReachedEmail notifies an account that its monthly thumbnail
// allowance has been fully used.
func (s *SMTPEmailService) SendLimitReachedEmail(ctx context.Context, to, name string, limit int64, tierName string) error {
	if name == "" {
		name = "there"
	}

	upgradeURL := s.baseURL + "/settings/billing"

	var htmlBuf bytes.Buffer
	err := s.template.Execute(&htmlBuf, map[string]interface{}{
		"Name":       name,
		"Limit":      limit,
		"Tier":       tierName,
		"UpgradeURL": upgradeURL,
	})
	if err != nil {
		return fmt.Errorf("failed to render limit reached email: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

You've used all %d thumbnail generations included in your %s plan this month.

Your allowance resets at the start of next month. If you need more thumbnails
now, you can upgrade your plan: %s

Thanks,
The Thumbgate Team
`, name, limit, tierName, upgradeURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "You've used your monthly thumbnail allowance",
		HTMLBody: htmlBuf.String(),
		TextBody: textBody,
	})
}

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent", "to", email.To, "subject", email.Subject)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============THUMBGATE_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

var _ EmailService = (*SMTPEmailService)(nil)
