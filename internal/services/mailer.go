package services

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/example/stockroute/internal/config"
)

// Mail is a single outbound message.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers mail. Callers decide whether a failure is fatal.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

var ErrMailNotConfigured = errors.New("mail credentials are not configured")

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer constructs an SMTPMailer. Credentials are checked per send.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers mail, failing fast when credentials are missing.
func (m *SMTPMailer) Send(ctx context.Context, mail Mail) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return ErrMailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", mail.To)
	msg.SetHeader("Subject", mail.Subject)
	msg.SetBody("text/plain", mail.Text)
	if mail.HTML != "" {
		msg.AddAlternative("text/html", mail.HTML)
	}

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", mail.To, err)
	}
	return nil
}

func otpMail(to, code, purpose string) Mail {
	return Mail{
		To:      to,
		Subject: fmt.Sprintf("Your %s code", purpose),
		Text:    fmt.Sprintf("Your %s code is %s. It expires in 10 minutes.", purpose, code),
		HTML:    fmt.Sprintf("<p>Your %s code is <b>%s</b>.</p><p>It expires in 10 minutes.</p>", purpose, code),
	}
}
