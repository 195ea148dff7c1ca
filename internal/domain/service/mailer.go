package service

import "context"

// MailMessage is an outbound email.
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email out of band.
type Mailer interface {
	Send(ctx context.Context, msg *MailMessage) error
}
