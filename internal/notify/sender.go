package notify

import "context"

// Message is a plain-text email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers one email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
