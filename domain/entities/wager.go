package entities

import "time"

// WagerState represents the state of a wager
type WagerState string

const (
	WagerStateVoting   WagerState = "voting"
	WagerStatePending  WagerState = "pending"
	WagerStateResolved WagerState = "resolved"
	WagerStateCanceled WagerState = "canceled"
)

// IsTerminal checks if no further transitions are possible
func (s WagerState) IsTerminal() bool {
	return s == WagerStateResolved || s == WagerStateCanceled
}

// IsActive checks if the wager still blocks a new wager in its watch party
func (s WagerState) IsActive() bool {
	return s == WagerStateVoting || s == WagerStatePending
}

// WagerKind identifies the settlement algorithm of a wager
type WagerKind string

const (
	WagerKindDiscreteChoice WagerKind = "discrete_choice"
	WagerKindNumericValue   WagerKind = "numeric_value"
	WagerKindOrderedRanking WagerKind = "ordered_ranking"
)

// Stake is a single voter's points in a wager
type Stake struct {
	DiscordID int64
	Points    int64
	Value     string
}

// WagerSummary is a read-only view of a wager
type WagerSummary struct {
	ID             string
	Kind           WagerKind
	Question       string
	Creator        int64
	WatchPartyName string
	IsPublic       bool
	State          WagerState
	VotingEndsAt   time.Time
	OffersTicket   bool
	Options        []string
	Stakes         []Stake
	TotalPot       int64
}

// SettlementMethod describes which payout path a resolution took
type SettlementMethod string

const (
	SettlementMethodEqualSplit SettlementMethod = "equal_split"
	SettlementMethodProximity  SettlementMethod = "proximity"
	SettlementMethodKendallTau SettlementMethod = "kendall_tau"
	SettlementMethodForfeit    SettlementMethod = "forfeit"
)

// Payout is the amount credited to one winner
type Payout struct {
	DiscordID int64
	Amount    int64
	Distance  float64
	Tickets   []TicketType
}

// SettlementResult represents the outcome of a wager resolution
type SettlementResult struct {
	WagerID   string
	Kind      WagerKind
	Correct   string
	Method    SettlementMethod
	TotalPot  int64
	Payouts   []Payout
	Forfeited bool
}

// TotalPaid returns the sum of all payouts; the difference to TotalPot is lost to truncation or forfeit
func (r *SettlementResult) TotalPaid() int64 {
	var total int64
	for _, p := range r.Payouts {
		total += p.Amount
	}
	return total
}

// PayoutFor returns the payout amount for a user, zero if they did not win
func (r *SettlementResult) PayoutFor(discordID int64) int64 {
	for _, p := range r.Payouts {
		if p.DiscordID == discordID {
			return p.Amount
		}
	}
	return 0
}
