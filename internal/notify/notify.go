// Package notify delivers rendered artifacts to a recipient set.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/ports"
	"github.com/bft-labs/reportship/pkg/log"
)

// Status is the outcome of one delivery attempt.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// DeliveryResult reports what Notify did.
type DeliveryResult struct {
	Status      Status
	Recipients  int
	Attachments int
}

// Notifier sends one message per run through a MailSender.
type Notifier struct {
	sender ports.MailSender
	from   string
	logger log.Logger
}

// New creates a Notifier that sends as from.
func New(sender ports.MailSender, from string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Notifier{sender: sender, from: from, logger: logger}
}

// Notify sends subject and body with every artifact attached to all
// recipients in a single message. An empty recipient set is skipped without
// touching the transport. Failures are returned as *domain.DeliveryError and
// are not retried.
func (n *Notifier) Notify(ctx context.Context, recipients domain.RecipientSet, subject, body string, artifacts []domain.Artifact) (DeliveryResult, error) {
	if recipients.Empty() {
		n.logger.Info("no recipients, skipping delivery")
		return DeliveryResult{Status: StatusSkipped}, nil
	}

	res := DeliveryResult{Recipients: recipients.Len(), Attachments: len(artifacts)}

	for _, a := range artifacts {
		if a.Name == "" || a.MIME == "" {
			res.Status = StatusFailed
			return res, &domain.DeliveryError{
				Reason: domain.DeliveryReasonAttachment,
				Err:    fmt.Errorf("artifact %q has no name or type", a.Name),
			}
		}
	}

	if n.sender == nil {
		res.Status = StatusFailed
		return res, &domain.DeliveryError{Reason: domain.DeliveryReasonTransport, Err: errors.New("no mail sender configured")}
	}

	if err := ctx.Err(); err != nil {
		res.Status = StatusFailed
		return res, &domain.DeliveryError{Reason: domain.DeliveryReasonConnection, Err: err}
	}

	msg := ports.Message{
		From:        n.from,
		To:          recipients.Addresses(),
		Subject:     subject,
		Body:        body,
		Attachments: artifacts,
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		res.Status = StatusFailed
		var de *domain.DeliveryError
		if !errors.As(err, &de) {
			err = &domain.DeliveryError{Reason: domain.DeliveryReasonTransport, Err: err}
		}
		n.logger.Error("delivery failed",
			log.Int("recipients", res.Recipients),
			log.Err(err),
		)
		return res, err
	}

	res.Status = StatusDelivered
	n.logger.Info("report delivered",
		log.Strings("recipients", msg.To),
		log.Int("attachments", res.Attachments),
	)
	return res, nil
}
