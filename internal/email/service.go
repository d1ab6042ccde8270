package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/referral-api/internal/config"
)

type Service interface {
	SendWelcome(ctx context.Context, email string, name string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// dialer is the part of *gomail.Dialer the SMTP service uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer dialer
	from   string
}

// NewService returns an SMTP mailer, or a no-op one when no SMTP host is configured.
func NewService(cfg config.SMTPConfig) Service {
	if cfg.Host == "" {
		return NewNoopService()
	}
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, email string, name string) error {
	if name == "" {
		name = email
	}
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your account on the referral system is ready. "+
			"Sign in with this email address to start uploading readings.</p>", name)
	return s.SendCustom(ctx, email, "Welcome to the referral system", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

type noopService struct{}

func NewNoopService() Service {
	return noopService{}
}

func (noopService) SendWelcome(ctx context.Context, email string, name string) error {
	return nil
}

func (noopService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	return nil
}
