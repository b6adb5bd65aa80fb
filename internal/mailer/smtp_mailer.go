package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/puffit/pkg/config"
	"gopkg.in/gomail.v2"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer   sender
	from     string
	fromName string
	baseURL  string
	ttl      time.Duration
}

func NewSMTPMailer(cfg config.EmailConfig, baseURL string, ttl time.Duration) *SMTPMailer {
	host := strings.TrimSpace(cfg.SMTPHost)
	d := gomail.NewDialer(host, cfg.SMTPPort, strings.TrimSpace(cfg.SMTPUser), strings.TrimSpace(cfg.SMTPPass))
	// Port 465 means implicit TLS; anything else upgrades with STARTTLS when
	// the server offers it.
	d.SSL = cfg.SMTPUseTLS && cfg.SMTPPort == 465
	if cfg.SMTPUseTLS {
		d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	return &SMTPMailer{
		dialer:   d,
		from:     strings.TrimSpace(cfg.SMTPFrom),
		fromName: cfg.SMTPFromName,
		baseURL:  baseURL,
		ttl:      ttl,
	}
}

func (s *SMTPMailer) SendVerificationEmail(ctx context.Context, toEmail, toName, token string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return errors.New("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := verificationMessage(s.baseURL, toName, token, s.ttl)

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetAddressHeader("To", toEmail, toName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}
