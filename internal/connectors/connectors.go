package connectors

import (
	"context"

	"axmed/internal"
)

// MailConnector pulls raw messages from one mailbox provider.
type MailConnector interface {
	Provider() string
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
