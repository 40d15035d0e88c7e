// Package notify delivers contact-form and ministry-inquiry emails.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"

	appLog "churchsite/internal/log"
)

// Message is a plain-text email.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// headerValue drops CR/LF so visitor input cannot add headers.
func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(s))
}

// Render builds the RFC 5322 form of msg.
func Render(msg Message) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("message has no recipients")
	}
	var b bytes.Buffer
	write := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", k, v)
		}
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, headerValue(addr))
	}
	write("From", headerValue(msg.From))
	write("To", strings.Join(to, ", "))
	write("Reply-To", headerValue(msg.ReplyTo))
	write("Subject", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	write("MIME-Version", "1.0")
	write("Content-Type", "text/plain; charset=UTF-8")
	write("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes(), nil
}

// LogMailer logs messages instead of sending them. It is used when no
// mail provider is configured.
type LogMailer struct {
	mu   sync.Mutex
	Sent []Message
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	appLog.Info("mail: not sent, log mailer in use",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"bytes", len(msg.Body),
	)
	return nil
}
