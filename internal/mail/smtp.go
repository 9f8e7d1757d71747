package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/castellan/castellan/jobs"
)

var _ jobs.MailSender = (*SMTPSender)(nil)

// SMTPSender delivers emails over a plain SMTP relay, which is what the
// local Mailpit/Mailhog setup and most transactional relays expect.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs a sender for the given relay address
// ("host:port") and envelope sender.
func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

// Send delivers a single plain-text email.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}
