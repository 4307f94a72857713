// Package email provides transactional email sending.
//
// The only notification this service sends is the allowance-used email
// delivered when an account spends its last thumbnail generation of the
// period. Sending is best-effort; a failed notification never affects
// admission.
package email

import "context"

// EmailService defines the interface for sending transactional emails.
type EmailService interface {
	// SendLimitReachedEmail notifies an account that its monthly thumbnail
	// allowance has been fully used.
	SendLimitReachedEmail(ctx context.Context, to, name string, limit int64, tierName string) error
}

// Email represents a single email message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // e.g. "localhost" for Mailhog
	Port     int    // e.g. 1025 for Mailhog
	Username string // empty for Mailhog
	Password string
	From     string
	FromName string
}

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@thumbgate.io"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Thumbgate"
)
