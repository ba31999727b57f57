package infrastructure

import (
	"fmt"

	"watchparty/domain/events"
)

// DomainEventStream is the JetStream stream that holds every published domain event
const DomainEventStream = "watchparty_events"

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeBalanceChange:
		return "ledger.balance_changed"
	case events.EventTypeWagerStateChange:
		return "wagers.state_changed"
	case events.EventTypeWagerSettled:
		return "wagers.settled"
	case events.EventTypeWatchPartyStatusChange:
		return "watchparties.status_changed"
	case events.EventTypeTicketGranted:
		return "watchparties.ticket_granted"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "ledger.balance_changed":
		return events.EventTypeBalanceChange
	case "wagers.state_changed":
		return events.EventTypeWagerStateChange
	case "wagers.settled":
		return events.EventTypeWagerSettled
	case "watchparties.status_changed":
		return events.EventTypeWatchPartyStatusChange
	case "watchparties.ticket_granted":
		return events.EventTypeTicketGranted
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"ledger.balance_changed",
		"wagers.state_changed",
		"wagers.settled",
		"watchparties.status_changed",
		"watchparties.ticket_granted",
	}
}
