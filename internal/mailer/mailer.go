package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/diagnosis/puffit/pkg/config"
	"github.com/google/go-querystring/query"
)

// Service delivers the verification link for a pending registration.
type Service interface {
	SendVerificationEmail(ctx context.Context, toEmail, toName, token string) error
}

type verifyQuery struct {
	Token string `url:"token"`
}

// VerificationURL returns <baseURL>/verify-email?token=<token>.
func VerificationURL(baseURL, token string) string {
	v, _ := query.Values(verifyQuery{Token: token})
	return strings.TrimRight(baseURL, "/") + "/verify-email?" + v.Encode()
}

type message struct {
	Subject string
	Text    string
	HTML    string
	URL     string
}

func verificationMessage(baseURL, toName, token string, ttl time.Duration) message {
	link := VerificationURL(baseURL, token)
	validity := expiryText(ttl)

	text := fmt.Sprintf("Hi %s,\n\nPlease verify your email by opening this link: %s\n\nThis link will expire in %s.\nIf you didn't create a Puffit account, you can ignore this email.",
		toName, link, validity)
	body := fmt.Sprintf(`
		<h2>Welcome to Puffit!</h2>
		<p>Hi %s,</p>
		<p>Please verify your email address by clicking the link below:</p>
		<p><a href="%s" style="background-color: #6b4caf; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a></p>
		<p>This link will expire in %s.</p>
		<p>If you didn't create an account with us, please ignore this email.</p>
	`, html.EscapeString(toName), html.EscapeString(link), validity)

	return message{
		Subject: "Verify your Puffit account",
		Text:    text,
		HTML:    body,
		URL:     link,
	}
}

func expiryText(ttl time.Duration) string {
	if h := int(ttl.Hours()); h >= 1 && ttl%time.Hour == 0 {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return ttl.String()
}

// New picks the delivery backend: dev mode logs the link, a MailerSend key
// selects the API, anything else goes over SMTP.
func New(cfg *config.Config) Service {
	baseURL := cfg.App.APIURL
	ttl := cfg.Auth.EmailVerificationTTL

	switch {
	case cfg.Email.DevMode:
		return NewDevMailer(baseURL, ttl)
	case cfg.Email.MailerSendKey != "":
		return NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.SMTPFromName, cfg.Email.SMTPFrom, baseURL, ttl)
	default:
		return NewSMTPMailer(cfg.Email, baseURL, ttl)
	}
}
