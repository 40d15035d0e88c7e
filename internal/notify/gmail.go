package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	appLog "churchsite/internal/log"
)

// GmailConfig holds the OAuth client and the long-lived refresh token of
// the sending mailbox.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	From         string
}

// GmailMailer sends through the Gmail API as the authorised mailbox.
type GmailMailer struct {
	svc  *gmail.Service
	from string
}

// NewGmailMailer builds a sender. Extra opts replace the OAuth transport,
// which tests use to point at a fake server.
func NewGmailMailer(ctx context.Context, cfg GmailConfig, opts ...option.ClientOption) (*GmailMailer, error) {
	if len(opts) == 0 {
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
			return nil, errors.New("gmail: client id, secret and refresh token are required")
		}
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		}
		// Expired token forces an exchange on first use.
		ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken, Expiry: time.Now()})
		opts = []option.ClientOption{option.WithTokenSource(ts)}
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: create service: %w", err)
	}
	return &GmailMailer{svc: svc, from: cfg.From}, nil
}

func (g *GmailMailer) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = g.from
	}
	raw, err := Render(msg)
	if err != nil {
		return err
	}
	sent, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: send: %w", err)
	}
	appLog.Debug("mail: sent via gmail", "gmail_id", sent.Id, "subject", msg.Subject)
	return nil
}
