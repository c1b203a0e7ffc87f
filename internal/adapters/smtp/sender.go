// Package smtp implements ports.MailSender on an SMTP relay.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/textproto"
	"strings"

	mail "gopkg.in/mail.v2"

	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/internal/ports"
)

// Config describes the relay. Port 465 uses implicit TLS; any other port
// must upgrade with STARTTLS, and a relay that does not offer it is refused
// before credentials are sent.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

// dialer is the part of mail.Dialer the sender needs.
type dialer interface {
	Dial() (mail.SendCloser, error)
}

// Sender implements ports.MailSender with mail.v2. Each Send opens and closes
// its own connection.
type Sender struct {
	dialer dialer
}

// NewSender creates a Sender for cfg.
func NewSender(cfg Config) *Sender {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	if !d.SSL {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &Sender{dialer: d}
}

// Send builds one MIME message with every artifact attached and submits it.
func (s *Sender) Send(ctx context.Context, msg ports.Message) error {
	m, err := buildMessage(msg)
	if err != nil {
		return &domain.DeliveryError{Reason: domain.DeliveryReasonAttachment, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return &domain.DeliveryError{Reason: domain.DeliveryReasonConnection, Err: err}
	}

	sc, err := s.dialer.Dial()
	if err != nil {
		return classify(err)
	}
	// mail.Send hides the relay error behind its own type, so send directly.
	if err := sc.Send(msg.From, msg.To, m); err != nil {
		sc.Close()
		return classify(err)
	}
	if err := sc.Close(); err != nil {
		return classify(err)
	}
	return nil
}

func buildMessage(msg ports.Message) (*mail.Message, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("message has no recipients")
	}
	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	for _, a := range msg.Attachments {
		if a.Name == "" {
			return nil, errors.New("attachment without a name")
		}
		ct := mime.FormatMediaType(a.MIME, map[string]string{"name": a.Name})
		if ct == "" {
			return nil, fmt.Errorf("attachment %q: invalid media type %q", a.Name, a.MIME)
		}
		data := a.Data
		m.Attach(a.Name,
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			mail.SetHeader(map[string][]string{
				"Content-Type": {ct},
			}),
		)
	}
	return m, nil
}

// classify maps relay errors onto delivery reasons. Auth failures carry the
// 530/534/535 reply codes; dial and TLS failures are connection errors.
func classify(err error) error {
	var noTLS mail.StartTLSUnsupportedError
	if errors.As(err, &noTLS) {
		return &domain.DeliveryError{Reason: domain.DeliveryReasonConnection, Err: err}
	}

	var tp *textproto.Error
	if errors.As(err, &tp) {
		switch tp.Code {
		case 530, 534, 535:
			return &domain.DeliveryError{Reason: domain.DeliveryReasonAuth, Err: err}
		}
		return &domain.DeliveryError{Reason: domain.DeliveryReasonTransport, Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var tlsErr tls.RecordHeaderError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &tlsErr) {
		return &domain.DeliveryError{Reason: domain.DeliveryReasonConnection, Err: err}
	}

	if strings.Contains(strings.ToLower(err.Error()), "auth") {
		return &domain.DeliveryError{Reason: domain.DeliveryReasonAuth, Err: err}
	}
	return &domain.DeliveryError{Reason: domain.DeliveryReasonTransport, Err: err}
}
