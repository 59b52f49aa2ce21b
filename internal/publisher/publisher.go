// Package publisher defines the run-summary notification seam.
package publisher

import "context"

// Publisher announces a payload on a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Nop drops every message.
type Nop struct{}

// Publish satisfies Publisher.
func (Nop) Publish(context.Context, string, any) (string, error) {
	return "", nil
}
