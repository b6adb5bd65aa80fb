package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/diagnosis/puffit/pkg/logger"
)

type DevMailer struct {
	baseURL string
	ttl     time.Duration
	out     io.Writer
}

func NewDevMailer(baseURL string, ttl time.Duration) *DevMailer {
	return &DevMailer{baseURL: baseURL, ttl: ttl, out: os.Stdout}
}

func (d *DevMailer) SendVerificationEmail(ctx context.Context, toEmail, toName, token string) error {
	msg := verificationMessage(d.baseURL, toName, token, d.ttl)

	logger.InfoContext(ctx, "[DEV MAIL] Verification Email",
		"to", toEmail,
		"name", toName,
		"verify_url", msg.URL,
	)

	fmt.Fprintf(d.out, "\n"+
		"-----------------------------------------------------------------\n"+
		"VERIFICATION EMAIL (DEV MODE)\n"+
		"-----------------------------------------------------------------\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"Verification URL: %s\n"+
		"-----------------------------------------------------------------\n\n",
		toEmail, toName, msg.Subject, msg.URL)

	return nil
}
