package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/nithins313/unbound2/pkg/identity"
)

// SMTPConfig contains configuration for the SMTP notifier.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string

	// Port is the SMTP server port. Default: 587.
	Port int

	// Username and Password authenticate against the server. Empty
	// credentials send without AUTH.
	Username string
	Password string

	// From is the sender address. Defaults to Username.
	From string
}

// SMTPNotifier delivers approval alerts by email.
type SMTPNotifier struct {
	config SMTPConfig
	logger *slog.Logger

	// sendMail is swappable for tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier creates an SMTP notifier.
func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	if config.Port == 0 {
		config.Port = 587
	}
	if config.From == "" {
		config.From = config.Username
	}
	return &SMTPNotifier{
		config:   config,
		logger:   slog.Default().With("component", "notify.smtp"),
		sendMail: smtp.SendMail,
	}
}

// SendApprovalAlert mails all administrators in one message.
func (n *SMTPNotifier) SendApprovalAlert(ctx context.Context, admins []identity.Admin, alert Alert) error {
	if len(admins) == 0 {
		n.logger.Warn("no admin recipients for approval alert",
			"approval_id", alert.ApprovalID)
		return nil
	}

	to := make([]string, 0, len(admins))
	for _, admin := range admins {
		to = append(to, admin.Mail)
	}

	msg := n.buildMessage(to, alert)

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	if err := n.sendMail(addr, auth, n.config.From, to, msg); err != nil {
		return fmt.Errorf("failed to send approval email: %w", err)
	}

	n.logger.Info("approval email sent",
		"approval_id", alert.ApprovalID,
		"recipients", len(to),
	)
	return nil
}

func (n *SMTPNotifier) buildMessage(to []string, alert Alert) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: Command Approval Required - Unbound\r\n")
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "A command requires your approval.\r\n\r\n")
	fmt.Fprintf(&b, "Command:      %s\r\n", alert.Command)
	fmt.Fprintf(&b, "User ID:      %s\r\n", alert.IdentityID)
	fmt.Fprintf(&b, "Approval ID:  %s\r\n", alert.ApprovalID)
	fmt.Fprintf(&b, "Requested at: %s\r\n\r\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Log in to the admin panel to approve or reject this request.\r\n")
	return []byte(b.String())
}
