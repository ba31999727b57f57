package services

import (
	"sync"

	"watchparty/domain/entities"
	"watchparty/domain/events"
	"watchparty/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Reason describes why a balance changes; it ends up in the balance history
type Reason struct {
	Type      entities.TransactionType
	RelatedID string
	Metadata  map[string]any
}

type ledgerAccount struct {
	publicPoints  int64
	pointsByParty map[string]int64
	publicWins    int64
	winsByParty   map[string]int64
}

func (a *ledgerAccount) balance(scope entities.LedgerScope) int64 {
	if scope.IsPublic() {
		return a.publicPoints
	}
	return a.pointsByParty[scope.Party]
}

func (a *ledgerAccount) setBalance(scope entities.LedgerScope, value int64) {
	if scope.IsPublic() {
		a.publicPoints = value
		return
	}
	a.pointsByParty[scope.Party] = value
}

// Ledger holds every user's point balances. It is the only owner of balances;
// watch parties and wagers keep a reference to it.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[int64]*ledgerAccount
	recorder  interfaces.BalanceHistoryRecorder
	publisher interfaces.EventPublisher
}

// NewLedger creates an empty ledger. recorder and publisher may be nil.
func NewLedger(recorder interfaces.BalanceHistoryRecorder, publisher interfaces.EventPublisher) *Ledger {
	return &Ledger{
		accounts:  make(map[int64]*ledgerAccount),
		recorder:  recorder,
		publisher: publisher,
	}
}

func (l *Ledger) account(discordID int64) *ledgerAccount {
	acct, ok := l.accounts[discordID]
	if !ok {
		acct = &ledgerAccount{
			pointsByParty: make(map[string]int64),
			winsByParty:   make(map[string]int64),
		}
		l.accounts[discordID] = acct
	}
	return acct
}

// Debit subtracts amount from the user's balance in scope.
// It returns false without touching the balance if amount is not positive or the balance is too low.
func (l *Ledger) Debit(discordID int64, scope entities.LedgerScope, amount int64, reason Reason) bool {
	return l.debit(discordID, scope, amount, reason, l.publish)
}

// debit is Debit with the BalanceChangeEvent handed to emit. Watch parties pass
// their outbox so the event is published after the party lock is released.
func (l *Ledger) debit(discordID int64, scope entities.LedgerScope, amount int64, reason Reason, emit func(events.Event)) bool {
	if amount <= 0 {
		return false
	}

	l.mu.Lock()
	acct := l.account(discordID)
	before := acct.balance(scope)
	if before < amount {
		l.mu.Unlock()
		return false
	}
	after := before - amount
	acct.setBalance(scope, after)
	l.mu.Unlock()

	l.recordChange(discordID, scope, before, after, reason, emit)
	return true
}

// Credit adds amount to the user's balance in scope. The result never drops below zero.
func (l *Ledger) Credit(discordID int64, scope entities.LedgerScope, amount int64, reason Reason) {
	l.credit(discordID, scope, amount, reason, l.publish)
}

func (l *Ledger) credit(discordID int64, scope entities.LedgerScope, amount int64, reason Reason, emit func(events.Event)) {
	l.mu.Lock()
	acct := l.account(discordID)
	before := acct.balance(scope)
	after := before + amount
	if after < 0 {
		after = 0
	}
	acct.setBalance(scope, after)
	l.mu.Unlock()

	if after != before {
		l.recordChange(discordID, scope, before, after, reason, emit)
	}
}

// Balance returns the user's balance in scope
func (l *Ledger) Balance(discordID int64, scope entities.LedgerScope) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[discordID]
	if !ok {
		return 0
	}
	return acct.balance(scope)
}

// RecordWin increments the user's win counter in scope
func (l *Ledger) RecordWin(discordID int64, scope entities.LedgerScope) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.account(discordID)
	if scope.IsPublic() {
		acct.publicWins++
		return
	}
	acct.winsByParty[scope.Party]++
}

// Wins returns the user's win counter in scope
func (l *Ledger) Wins(discordID int64, scope entities.LedgerScope) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[discordID]
	if !ok {
		return 0
	}
	if scope.IsPublic() {
		return acct.publicWins
	}
	return acct.winsByParty[scope.Party]
}

// Snapshot returns a copy of the user's ledger entry
func (l *Ledger) Snapshot(discordID int64) entities.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := entities.LedgerEntry{
		DiscordID:     discordID,
		PointsByParty: make(map[string]int64),
		WinsByParty:   make(map[string]int64),
	}
	acct, ok := l.accounts[discordID]
	if !ok {
		return entry
	}
	entry.PublicPoints = acct.publicPoints
	entry.PublicWins = acct.publicWins
	for k, v := range acct.pointsByParty {
		entry.PointsByParty[k] = v
	}
	for k, v := range acct.winsByParty {
		entry.WinsByParty[k] = v
	}
	return entry
}

// recordChange is the single exit point for balance changes: it hands the
// history entry to the recorder and emits a BalanceChangeEvent.
func (l *Ledger) recordChange(discordID int64, scope entities.LedgerScope, before, after int64, reason Reason, emit func(events.Event)) {
	history := &entities.BalanceHistory{
		DiscordID:           discordID,
		Scope:               scope.Key(),
		BalanceBefore:       before,
		BalanceAfter:        after,
		ChangeAmount:        after - before,
		TransactionType:     reason.Type,
		TransactionMetadata: reason.Metadata,
	}
	if reason.RelatedID != "" {
		related := reason.RelatedID
		history.RelatedID = &related
	}

	if l.recorder != nil {
		l.recorder.RecordAsync(history)
	}

	if l.publisher == nil {
		return
	}
	event := events.BalanceChangeEvent{
		UserID:          discordID,
		Scope:           scope.Key(),
		OldBalance:      before,
		NewBalance:      after,
		TransactionType: reason.Type,
		ChangeAmount:    after - before,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"scope":           event.Scope,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionType": event.TransactionType,
	}).Debug("Queueing BalanceChangeEvent")
	emit(event)
}

func (l *Ledger) publish(event events.Event) {
	if err := l.publisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}
}
