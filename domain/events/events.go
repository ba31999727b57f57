package events

import "watchparty/domain/entities"

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange          EventType = "balance_change"
	EventTypeWagerStateChange       EventType = "wager_state_change"
	EventTypeWagerSettled           EventType = "wager_settled"
	EventTypeWatchPartyStatusChange EventType = "watch_party_status_change"
	EventTypeTicketGranted          EventType = "ticket_granted"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a ledger mutation
type BalanceChangeEvent struct {
	UserID          int64
	Scope           string
	OldBalance      int64
	NewBalance      int64
	TransactionType entities.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// WagerStateChangeEvent represents a wager state transition
type WagerStateChangeEvent struct {
	WagerID        string
	WatchPartyName string
	Kind           entities.WagerKind
	OldState       entities.WagerState
	NewState       entities.WagerState
}

func (e WagerStateChangeEvent) Type() EventType {
	return EventTypeWagerStateChange
}

// WagerSettledEvent carries the payouts of a resolved wager
type WagerSettledEvent struct {
	WagerID        string
	WatchPartyName string
	Result         entities.SettlementResult
}

func (e WagerSettledEvent) Type() EventType {
	return EventTypeWagerSettled
}

// WatchPartyStatusChangeEvent represents a watch party opening or closing
type WatchPartyStatusChangeEvent struct {
	WatchPartyName string
	OldStatus      entities.WatchPartyStatus
	NewStatus      entities.WatchPartyStatus
	MatchID        string
	Removed        []int64
}

func (e WatchPartyStatusChangeEvent) Type() EventType {
	return EventTypeWatchPartyStatusChange
}

// TicketGrantedEvent represents a ticket earned by a user
type TicketGrantedEvent struct {
	WatchPartyName string
	UserID         int64
	TicketType     entities.TicketType
}

func (e TicketGrantedEvent) Type() EventType {
	return EventTypeTicketGranted
}
