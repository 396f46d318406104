// Package mail builds and delivers the transactional emails the service
// sends: verification links, password resets, closure notices and the
// contact form.
package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is a single outbound HTML email.
type Message struct {
	To      string `json:"to"`
	ReplyTo string `json:"reply_to,omitempty"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Sender delivers a message.  Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them.  It is used
// when no SMTP host is configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("mail not sent: SMTP disabled")
	return nil
}
