package ports

import "context"

// EventPublisher is the outbound notification publish port.
// The application uses this abstraction to keep transport concerns in adapters.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}
