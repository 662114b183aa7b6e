package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPMailer delivers through a plain SMTP submission endpoint with
// PLAIN auth (Gmail app passwords and the like). net/smtp upgrades to
// STARTTLS when the server advertises it.
type SMTPMailer struct {
	host     string
	port     int
	sender   string
	password string
}

func NewSMTPMailer(host string, port int, sender, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, sender: sender, password: password}
}

func (m *SMTPMailer) Deliver(ctx context.Context, to, subject, htmlBody string) error {
	// net/smtp has no context plumbing; honor cancellation before dialing.
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(m.sender, to, subject, htmlBody)
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	auth := smtp.PlainAuth("", m.sender, m.password, m.host)

	if err := smtp.SendMail(addr, auth, m.sender, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
