package ports

import (
	"context"

	"github.com/bft-labs/reportship/internal/domain"
)

// MailSender submits messages to a mail relay.
// Implementations open and release their connection within Send.
type MailSender interface {
	// Send delivers msg. Failures should be returned as *domain.DeliveryError
	// so callers can classify them; other errors are treated as transport failures.
	Send(ctx context.Context, msg Message) error
}

// Message is one outgoing mail addressed to every recipient at once.
type Message struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Attachments []domain.Artifact
}
