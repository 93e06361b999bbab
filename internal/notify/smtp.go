package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/contractflow/contractflow/internal/models"
	"github.com/rs/zerolog/log"
)

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string // public URL used to build links in message bodies
}

// SMTPNotifier sends HTML mail over plain SMTP.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier creates a Notifier backed by an SMTP relay.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, email, fullName, code string) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your verification code is:</p>
<h2>%s</h2>
<p>The code expires in 24 hours.</p>`, fullName, code)

	return n.send(ctx, email, "Verify your email", body)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, fullName, token string) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>We received a request to reset your password. Follow the link below to choose a new one:</p>
<p><a href="%s/reset-password?token=%s">Reset password</a></p>
<p>If you did not request this, you can ignore this message.</p>`, fullName, n.cfg.BaseURL, token)

	return n.send(ctx, email, "Reset your password", body)
}

func (n *SMTPNotifier) SendInvitation(ctx context.Context, email, orgName string, role models.Role, token string) error {
	body := fmt.Sprintf(`<p>You have been invited to join <strong>%s</strong> as %s.</p>
<p><a href="%s/invitations/accept?token=%s">Accept invitation</a></p>
<p>The invitation expires in 7 days.</p>`, orgName, role, n.cfg.BaseURL, token)

	return n.send(ctx, email, fmt.Sprintf("Invitation to join %s", orgName), body)
}

func (n *SMTPNotifier) SendInvitationCancelled(ctx context.Context, email, orgName string) error {
	body := fmt.Sprintf(`<p>Your invitation to join <strong>%s</strong> has been withdrawn.</p>`, orgName)

	return n.send(ctx, email, fmt.Sprintf("Invitation to %s withdrawn", orgName), body)
}

func (n *SMTPNotifier) SendMemberRemoved(ctx context.Context, email, orgName string) error {
	body := fmt.Sprintf(`<p>Your membership of <strong>%s</strong> has been removed.</p>`, orgName)

	return n.send(ctx, email, fmt.Sprintf("Removed from %s", orgName), body)
}

func (n *SMTPNotifier) SendRoleChanged(ctx context.Context, email, orgName string, newRole models.Role) error {
	body := fmt.Sprintf(`<p>Your role in <strong>%s</strong> is now %s.</p>`, orgName, newRole)

	return n.send(ctx, email, fmt.Sprintf("Role updated in %s", orgName), body)
}

func (n *SMTPNotifier) SendContractActivated(ctx context.Context, email, contractTitle string) error {
	body := fmt.Sprintf(`<p>The contract <strong>%s</strong> is now active.</p>`, contractTitle)

	return n.send(ctx, email, fmt.Sprintf("Contract active: %s", contractTitle), body)
}

func (n *SMTPNotifier) SendWelcome(ctx context.Context, email, fullName string) error {
	body := fmt.Sprintf(`<p>Welcome aboard, %s!</p>
<p>Your account is verified and ready to use.</p>`, fullName)

	return n.send(ctx, email, "Welcome", body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="utf-8"`,
		"",
		htmlBody,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	var a smtp.Auth
	if n.cfg.Username != "" {
		a = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, a, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	log.Debug().Str("to", to).Str("subject", subject).Msg("Sent mail")
	return nil
}
