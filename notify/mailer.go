package notify

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// SMTPMailer delivers through a plain SMTP relay. PLAIN auth is used when a
// user is configured.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		sendMail: smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if m.From == "" {
		return errors.New("smtp: no sender address configured")
	}

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}

	msg := buildMessage(m.From, addr.Address, subject, body)
	hostPort := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	return m.sendMail(hostPort, auth, m.From, []string{addr.Address}, msg)
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no SMTP host is configured.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) Send(to, subject, body string) error {
	m.Logger.Info("mail (not sent, no smtp host)", "to", to, "subject", subject, "body", body)
	return nil
}
