// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/garbage-collector/internal/mail"
)

// MailRequestedEvent is published to the mail outbox when a service wants
// an email delivered.  It carries the fully rendered message so the
// consumer never needs to query the database.
type MailRequestedEvent struct {
	To          string    `json:"to"`
	ReplyTo     string    `json:"reply_to,omitempty"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewMailRequestedEvent wraps msg for publishing.
func NewMailRequestedEvent(msg mail.Message, now time.Time) MailRequestedEvent {
	return MailRequestedEvent{
		To:          msg.To,
		ReplyTo:     msg.ReplyTo,
		Subject:     msg.Subject,
		HTML:        msg.HTML,
		RequestedAt: now.UTC(),
	}
}

// Message converts the event back into a deliverable message.
func (e MailRequestedEvent) Message() mail.Message {
	return mail.Message{To: e.To, ReplyTo: e.ReplyTo, Subject: e.Subject, HTML: e.HTML}
}
