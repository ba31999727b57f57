package interfaces

import (
	"context"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"
)

// MatchDataSource provides schedule data from the external esports feed
type MatchDataSource interface {
	// NextMatchForTeam returns the next match of a team, nil if none is scheduled
	NextMatchForTeam(ctx context.Context, team string) (*entities.Match, error)

	// NextMatchForTournament returns the next match of a tournament, nil if none is scheduled
	NextMatchForTournament(ctx context.Context, tournament string) (*entities.Match, error)

	// UpcomingMatchesForTeam returns the known upcoming matches of a team ordered by time
	UpcomingMatchesForTeam(ctx context.Context, team string) ([]*entities.Match, error)

	// UpcomingMatchesForTournament returns the known upcoming matches of a tournament ordered by time
	UpcomingMatchesForTournament(ctx context.Context, tournament string) ([]*entities.Match, error)

	// RefreshStatus updates the match status in place
	RefreshStatus(ctx context.Context, match *entities.Match) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// BalanceHistoryRecorder accepts ledger mutations for persistence. Implementations must not block.
type BalanceHistoryRecorder interface {
	RecordAsync(history *entities.BalanceHistory)
}

// BalanceHistoryRepository defines the interface for balance history storage
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *entities.BalanceHistory) error

	// GetByUser returns balance history for a user in a scope, newest first
	GetByUser(ctx context.Context, discordID int64, scope string, limit int) ([]*entities.BalanceHistory, error)

	// GetByDateRange returns balance history of a user within a date range
	GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*entities.BalanceHistory, error)
}

// AdminChecker decides whether a user holds admin capability
type AdminChecker interface {
	IsAdmin(discordID int64) bool
}

// RandomSource supplies the randomness for bonus tickets. *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// MetricsRecorder receives domain-level measurements. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	RecordSchedulerCycle(parties, failures int, duration time.Duration)
	RecordPartyUpdateFailure(partyName string)
	RecordVote(kind entities.WagerKind)
	RecordSettlement(kind entities.WagerKind, method entities.SettlementMethod, paid int64)
	RecordPartyStatusChange(status entities.WatchPartyStatus)
}
