package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Notifier is the delivery seam (email today, anything later). Sends are
// fire-and-forget from the workflow's point of view; only the worker
// cares about the returned message id.
type Notifier interface {
	Send(kind, to, subject, body string) (messageID string, err error)
}

// ConsoleNotifier logs instead of sending; the dev default.
type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (c *ConsoleNotifier) Send(kind, to, subject, body string) (string, error) {
	id := uuid.NewString()
	log.Printf("[notify] kind=%s to=%s id=%s :: %s / %s", kind, to, id, subject, body)
	return id, nil
}

// SMTPNotifier sends plain-text mail through a single relay.
type SMTPNotifier struct {
	Addr string // host:port
	From string
	Auth smtp.Auth
}

func NewSMTP(addr, from, username, password string) *SMTPNotifier {
	host := addr
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		host = addr[:i]
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPNotifier{Addr: addr, From: from, Auth: auth}
}

func (s *SMTPNotifier) Send(kind, to, subject, body string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("smtp send: empty recipient")
	}
	id := uuid.NewString()
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"Message-ID: <" + id + "@studio>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return id, nil
}

// HumanSlot renders a booking slot for message bodies.
func HumanSlot(date, startTime string, durationMin int) string {
	if t, err := time.Parse("2006-01-02 15:04", date+" "+startTime); err == nil {
		end := t.Add(time.Duration(durationMin) * time.Minute)
		return fmt.Sprintf("%s to %s", t.Format("2006-01-02 15:04"), end.Format("15:04"))
	}
	return date + " " + startTime
}
