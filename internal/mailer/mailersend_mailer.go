package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
	baseURL string
	ttl     time.Duration
}

func NewMailerSend(apiKey, fromName, fromEmail, baseURL string, ttl time.Duration) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
		baseURL: baseURL,
		ttl:     ttl,
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendVerificationEmail(ctx context.Context, toEmail, toName, token string) error {
	if !m.enabled {
		return errors.New("mailersend not configured (missing MAILERSEND_API_KEY or SMTP_FROM)")
	}

	msg := verificationMessage(m.baseURL, toName, token, m.ttl)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	email.SetSubject(msg.Subject)
	email.SetText(msg.Text)
	email.SetHTML(msg.HTML)

	res, err := m.client.Email.Send(ctx, email)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
