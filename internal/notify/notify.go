package notify

import "context"

// EmailMessage is a plain-text email ready for a delivery backend.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// EmailSender delivers a single email. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
