// Package email delivers escalated follow-up touches over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// Sender implements channel.Messenger over the tenant's SMTP server.
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	log       *logger.Logger
}

func NewSender(cfg config.SMTPConfig, log *logger.Logger) *Sender {
	if !cfg.IsEmailEnabled() {
		return nil
	}

	return &Sender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		log:       log,
	}
}

// SendMessage sends a plain-text follow-up. A missing subject falls back
// to a generic one rather than failing the touch.
func (s *Sender) SendMessage(ctx context.Context, p domain.Prospect, subject, body string) (string, error) {
	if !p.HasEmail() {
		return "", apperr.Validation("prospect has no email address")
	}
	if strings.TrimSpace(subject) == "" {
		subject = "Following up"
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), messageIDDomain(s.fromEmail))

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return "", fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(p.Email); err != nil {
		return "", fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetMessageIDWithValue(messageID)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "smtp send failed", err)
	}

	s.log.Info("follow-up email sent", "prospect_id", p.ID.String(), "message_id", messageID)
	return messageID, nil
}

func messageIDDomain(fromEmail string) string {
	if at := strings.LastIndex(fromEmail, "@"); at >= 0 && at < len(fromEmail)-1 {
		return fromEmail[at+1:]
	}
	return "localhost"
}
