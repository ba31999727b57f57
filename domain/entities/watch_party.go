package entities

import "time"

// WatchPartyStatus represents whether a watch party accepts participants
type WatchPartyStatus string

const (
	WatchPartyStatusWaiting WatchPartyStatus = "waiting"
	WatchPartyStatusOpen    WatchPartyStatus = "open"
	WatchPartyStatusClosed  WatchPartyStatus = "closed"
)

// MatchState represents the state of the match being watched
type MatchState string

const (
	MatchStatePreMatch   MatchState = "pre_match"
	MatchStatePaused     MatchState = "paused"
	MatchStateInProgress MatchState = "in_progress"
	MatchStateFinished   MatchState = "finished"
)

// MatchStateFor maps a feed status to the watch party's match state
func MatchStateFor(status MatchStatus) MatchState {
	switch status {
	case MatchStatusLive:
		return MatchStateInProgress
	case MatchStatusFinished:
		return MatchStateFinished
	default:
		return MatchStatePreMatch
	}
}

// AutoType selects which match feed query drives an auto watch party
type AutoType string

const (
	AutoTypeTeam       AutoType = "team"
	AutoTypeTournament AutoType = "tournament"
)

// IsValid checks if the auto type is known
func (t AutoType) IsValid() bool {
	return t == AutoTypeTeam || t == AutoTypeTournament
}

// AutoConfig holds the match feed settings of an auto watch party
type AutoConfig struct {
	Type         AutoType
	Target       string
	CurrentMatch *Match
	LastChecked  *time.Time
}

// TicketType is a per-user entitlement earned inside a watch party
type TicketType string

const (
	TicketTypeDiscreteChoice TicketType = "discrete_choice"
	TicketTypeOrderedRanking TicketType = "ordered_ranking"
	TicketTypeInOrOut        TicketType = "in_or_out"
)

// WatchPartySummary is a read-only view of a watch party
type WatchPartySummary struct {
	Name         string
	Date         time.Time
	Game         string
	IsPublic     bool
	IsAuto       bool
	Status       WatchPartyStatus
	MatchState   MatchState
	Creator      *int64
	Participants []int64
	AutoType     AutoType
	AutoTarget   string
	CurrentMatch *Match
	LastChecked  *time.Time
	ActiveWager  *WagerSummary
	TicketCount  int
}
