package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"axmed/internal"
	"axmed/internal/config"
	"axmed/internal/logger"
)

// Query narrows the listing to mail that can carry an order sheet.
const Query = "has:attachment OR filename:csv OR filename:xlsx OR subject:order"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for name, value := range map[string]string{
		"GMAIL_CLIENT_ID":     cfg.GmailClientID,
		"GMAIL_CLIENT_SECRET": cfg.GmailClientSecret,
		"GMAIL_REFRESH_TOKEN": cfg.GmailRefreshToken,
	} {
		if err := cfg.Require(name, value); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc}, nil
}

func (c *Connector) Provider() string { return "gmail" }

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").LabelIds(label).Q(Query).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		rawResp, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if rawResp.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(rawResp.Raw)
		if err != nil {
			return nil, err
		}
		msg, err := messageFromRaw(ref.Id, raw, time.Now())
		if err != nil {
			logger.Warnf("gmail message %s unreadable: %v", ref.Id, err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// messageFromRaw fills the message metadata from the raw RFC 822 headers.
// The Gmail id stands in for a missing Message-ID.
func messageFromRaw(id string, raw []byte, now time.Time) (internal.FetchedMailMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.FetchedMailMessage{}, err
	}

	received := now.UTC().Format(time.RFC3339)
	if date := env.GetHeader("Date"); date != "" {
		if t, err := mail.ParseDate(date); err == nil {
			received = t.UTC().Format(time.RFC3339)
		}
	}
	messageID := env.GetHeader("Message-ID")
	if messageID == "" {
		messageID = id
	}

	return internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  messageID,
		Subject:    env.GetHeader("Subject"),
		From:       env.GetHeader("From"),
		ReceivedAt: received,
		Raw:        raw,
	}, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}
