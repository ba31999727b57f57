package testhelpers

import (
	"context"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockMatchDataSource is a mock implementation of MatchDataSource
type MockMatchDataSource struct {
	mock.Mock
}

func (m *MockMatchDataSource) NextMatchForTeam(ctx context.Context, team string) (*entities.Match, error) {
	args := m.Called(ctx, team)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Match), args.Error(1)
}

func (m *MockMatchDataSource) NextMatchForTournament(ctx context.Context, tournament string) (*entities.Match, error) {
	args := m.Called(ctx, tournament)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Match), args.Error(1)
}

func (m *MockMatchDataSource) UpcomingMatchesForTeam(ctx context.Context, team string) ([]*entities.Match, error) {
	args := m.Called(ctx, team)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

func (m *MockMatchDataSource) UpcomingMatchesForTournament(ctx context.Context, tournament string) ([]*entities.Match, error) {
	args := m.Called(ctx, tournament)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Match), args.Error(1)
}

func (m *MockMatchDataSource) RefreshStatus(ctx context.Context, match *entities.Match) error {
	args := m.Called(ctx, match)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, discordID int64, scope string, limit int) ([]*entities.BalanceHistory, error) {
	args := m.Called(ctx, discordID, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BalanceHistory), args.Error(1)
}

func (m *MockBalanceHistoryRepository) GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*entities.BalanceHistory, error) {
	args := m.Called(ctx, discordID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BalanceHistory), args.Error(1)
}

// MockMetricsRecorder is a mock implementation of MetricsRecorder
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordSchedulerCycle(parties, failures int, duration time.Duration) {
	m.Called(parties, failures, duration)
}

func (m *MockMetricsRecorder) RecordPartyUpdateFailure(partyName string) {
	m.Called(partyName)
}

func (m *MockMetricsRecorder) RecordVote(kind entities.WagerKind) {
	m.Called(kind)
}

func (m *MockMetricsRecorder) RecordSettlement(kind entities.WagerKind, method entities.SettlementMethod, paid int64) {
	m.Called(kind, method, paid)
}

func (m *MockMetricsRecorder) RecordPartyStatusChange(status entities.WatchPartyStatus) {
	m.Called(status)
}
