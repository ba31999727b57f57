package infrastructure

import (
	"watchparty/domain/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher logs events at debug level and drops them.
// Used when no NATS servers are configured.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish drops the event
func (n *NoopEventPublisher) Publish(event events.Event) error {
	log.WithField("eventType", event.Type()).Debug("Dropping event, no message bus configured")
	return nil
}
