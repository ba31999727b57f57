package services

import (
	"testing"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAutoParty(t *testing.T, env *testEnv) *WatchParty {
	t.Helper()
	party, err := env.registry.Create("t1-watch", entities.AutoTypeTeam, "T1", true)
	require.NoError(t, err)
	return party
}

func TestManualWatchParty_JoinGrantsOneTimeBonus(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "Finals", false)

	assert.Equal(t, entities.WatchPartyStatusOpen, party.Status())
	assert.True(t, party.IsParticipant(TestAdminID), "creator joins on creation")

	bonus, err := party.Join(TestUser1ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultJoinBonus, bonus)
	assert.Equal(t, DefaultJoinBonus, env.ledger.Balance(TestUser1ID, entities.PartyScope("finals")))
	assert.Equal(t, int64(0), env.ledger.Balance(TestUser1ID, entities.PublicScope()), "private parties have isolated pools")

	_, err = party.Join(TestUser1ID)
	requireKind(t, entities.ErrorKindStateConflict, err)

	assert.True(t, party.Leave(TestUser1ID))
	assert.False(t, party.Leave(TestUser1ID))

	bonus, err = party.Join(TestUser1ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bonus, "bonus is granted once per party")
	assert.Equal(t, DefaultJoinBonus, env.balance(party, TestUser1ID))
}

func TestWatchParty_PublicBonusUsesPublicScope(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "community", true)

	_, err := party.Join(TestUser1ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultJoinBonus, env.ledger.Balance(TestUser1ID, entities.PublicScope()))
}

func TestAutoWatchParty_Lifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := newAutoParty(t, env)

	assert.Equal(t, entities.WatchPartyStatusWaiting, party.Status())
	_, err := party.Join(TestUser1ID)
	requireKind(t, entities.ErrorKindStateConflict, err)

	// two hours out: still waiting
	match := testMatch("m1", testEpoch.Add(2*time.Hour), 3, entities.MatchStatusScheduled)
	party.UpdateStatus(match)
	assert.Equal(t, entities.WatchPartyStatusWaiting, party.Status())
	require.NotNil(t, party.AutoConfig().CurrentMatch)
	assert.Equal(t, "m1", party.AutoConfig().CurrentMatch.ID)

	// within thirty minutes: open
	env.clock.Advance(time.Hour + 40*time.Minute)
	party.UpdateStatus(match)
	assert.Equal(t, entities.WatchPartyStatusOpen, party.Status())
	assert.Equal(t, entities.MatchStatePreMatch, party.MatchState())

	_, err = party.Join(TestUser1ID)
	require.NoError(t, err)
	_, err = party.Join(TestUser2ID)
	require.NoError(t, err)
	party.GrantTicket(TestUser1ID, entities.TicketTypeInOrOut)

	// live
	env.clock.Advance(30 * time.Minute)
	live := match.Clone()
	live.Status = entities.MatchStatusLive
	party.UpdateStatus(live)
	assert.Equal(t, entities.WatchPartyStatusOpen, party.Status())
	assert.Equal(t, entities.MatchStateInProgress, party.MatchState())

	// finished: closed, kicked, tickets cleared
	env.clock.Advance(time.Hour)
	finished := match.Clone()
	finished.Status = entities.MatchStatusFinished
	party.UpdateStatus(finished)
	assert.Equal(t, entities.WatchPartyStatusClosed, party.Status())
	assert.Equal(t, entities.MatchStateFinished, party.MatchState())
	assert.Empty(t, party.Participants())
	assert.False(t, party.HasTicket(TestUser1ID, entities.TicketTypeInOrOut))

	_, err = party.Join(TestUser3ID)
	requireKind(t, entities.ErrorKindStateConflict, err)

	statusEvents := env.publisher.OfType(events.EventTypeWatchPartyStatusChange)
	require.Len(t, statusEvents, 2)
	closed := statusEvents[1].(events.WatchPartyStatusChangeEvent)
	assert.Equal(t, entities.WatchPartyStatusClosed, closed.NewStatus)
	assert.Equal(t, []int64{TestUser1ID, TestUser2ID}, closed.Removed)
}

func TestAutoWatchParty_UpdateStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                string
		initialOpen         bool
		next                func() *entities.Match
		expectedStatus      entities.WatchPartyStatus
		expectCurrentMatch  bool
		expectParticipantsN int
	}{
		{
			name:                "no match keeps a waiting party waiting",
			next:                func() *entities.Match { return nil },
			expectedStatus:      entities.WatchPartyStatusWaiting,
			expectParticipantsN: 0,
		},
		{
			name:                "no match closes an open party",
			initialOpen:         true,
			next:                func() *entities.Match { return nil },
			expectedStatus:      entities.WatchPartyStatusClosed,
			expectCurrentMatch:  true,
			expectParticipantsN: 0,
		},
		{
			name:        "past match force closes and clears the current match",
			initialOpen: true,
			next: func() *entities.Match {
				return testMatch("old", testEpoch.Add(-5*time.Hour), 1, entities.MatchStatusScheduled)
			},
			expectedStatus:      entities.WatchPartyStatusClosed,
			expectParticipantsN: 0,
		},
		{
			name:        "already started match opens the party",
			initialOpen: false,
			next: func() *entities.Match {
				return testMatch("live", testEpoch.Add(-10*time.Minute), 3, entities.MatchStatusLive)
			},
			expectedStatus:     entities.WatchPartyStatusOpen,
			expectCurrentMatch: true,
		},
		{
			name:        "upcoming match keeps an open party open",
			initialOpen: true,
			next: func() *entities.Match {
				return testMatch("soon", testEpoch.Add(10*time.Minute), 1, entities.MatchStatusScheduled)
			},
			expectedStatus:      entities.WatchPartyStatusOpen,
			expectCurrentMatch:  true,
			expectParticipantsN: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := newAutoParty(t, env)
			if tt.initialOpen {
				party.UpdateStatus(testMatch("warmup", testEpoch.Add(5*time.Minute), 1, entities.MatchStatusScheduled))
				require.Equal(t, entities.WatchPartyStatusOpen, party.Status())
				_, err := party.Join(TestUser1ID)
				require.NoError(t, err)
			}

			party.UpdateStatus(tt.next())

			assert.Equal(t, tt.expectedStatus, party.Status())
			assert.Equal(t, tt.expectCurrentMatch, party.AutoConfig().CurrentMatch != nil)
			assert.Len(t, party.Participants(), tt.expectParticipantsN)
		})
	}
}

func TestWatchParty_ClosingKeepsCreator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := newAutoParty(t, env)
	creator := TestAdminID
	party.creator = &creator

	party.UpdateStatus(testMatch("m1", testEpoch.Add(5*time.Minute), 1, entities.MatchStatusScheduled))
	_, err := party.Join(TestAdminID)
	require.NoError(t, err)
	_, err = party.Join(TestUser1ID)
	require.NoError(t, err)

	party.UpdateStatus(nil)

	assert.Equal(t, []int64{TestAdminID}, party.Participants())
}

func TestWatchParty_OneActiveWager(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)

	first := newInstalledDiscrete(t, env, party)

	second, err := NewDiscreteChoiceWager(party, TestAdminID, "Second?", TestVotingWindow, []string{"A", "B"}, false)
	require.NoError(t, err)
	requireKind(t, entities.ErrorKindStateConflict, party.CreateWager(second))

	require.NoError(t, first.EndVoting())
	requireKind(t, entities.ErrorKindStateConflict, party.CreateWager(second))

	_, err = first.Resolve("T1")
	require.NoError(t, err)
	require.NoError(t, party.CreateWager(second))
	assert.Equal(t, second.ID(), party.ActiveWager().ID())

	_, err = second.Cancel()
	require.NoError(t, err)
	third := newInstalledDiscrete(t, env, party)
	assert.Equal(t, third.ID(), party.ActiveWager().ID())
}

func TestWatchParty_CreateWagerRejectsForeignWager(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	finals := env.manualParty(t, "finals", true)
	semis := env.manualParty(t, "semis", true)

	w, err := NewDiscreteChoiceWager(semis, TestAdminID, "Who wins?", TestVotingWindow, []string{"A", "B"}, false)
	require.NoError(t, err)

	requireKind(t, entities.ErrorKindValidation, finals.CreateWager(w))
	assert.False(t, finals.HasActiveWager())
}

func TestWatchParty_Tickets(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)

	assert.False(t, party.ConsumeTicket(TestUser1ID, entities.TicketTypeInOrOut))

	party.GrantTicket(TestUser1ID, entities.TicketTypeInOrOut)
	party.GrantTicket(TestUser1ID, entities.TicketTypeDiscreteChoice)
	assert.True(t, party.HasTicket(TestUser1ID, entities.TicketTypeInOrOut))
	assert.Equal(t, 2, party.Snapshot().TicketCount)

	assert.True(t, party.ConsumeTicket(TestUser1ID, entities.TicketTypeInOrOut))
	assert.False(t, party.ConsumeTicket(TestUser1ID, entities.TicketTypeInOrOut))
	assert.True(t, party.ConsumeTicket(TestUser1ID, entities.TicketTypeDiscreteChoice))

	_, exists := party.tickets[TestUser1ID]
	assert.False(t, exists, "user entry is removed once empty")
}

func TestWatchParty_SetMatchState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := newAutoParty(t, env)

	requireKind(t, entities.ErrorKindUnauthorized, party.SetMatchState(TestUser1ID, entities.MatchStatePaused))
	requireKind(t, entities.ErrorKindValidation, party.SetMatchState(TestAdminID, entities.MatchState("halftime")))

	require.NoError(t, party.SetMatchState(TestAdminID, entities.MatchStatePaused))
	assert.Equal(t, entities.MatchStatePaused, party.MatchState())

	live := testMatch("m1", testEpoch.Add(-10*time.Minute), 3, entities.MatchStatusLive)
	party.UpdateStatus(live)
	assert.Equal(t, entities.MatchStatePaused, party.MatchState(), "pause survives live updates")

	finished := live.Clone()
	finished.Status = entities.MatchStatusFinished
	party.UpdateStatus(finished)
	assert.Equal(t, entities.MatchStateFinished, party.MatchState())
}

func TestWatchParty_ManualPartyIgnoresStatusUpdates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)

	party.UpdateStatus(nil)

	assert.Equal(t, entities.WatchPartyStatusOpen, party.Status())
	assert.Nil(t, party.AutoConfig())
}

func TestNewAutoWatchParty_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)

	_, err := NewAutoWatchParty("", entities.AutoTypeTeam, "T1", true, env.deps)
	requireKind(t, entities.ErrorKindValidation, err)

	_, err = NewAutoWatchParty("x", entities.AutoType("league"), "T1", true, env.deps)
	requireKind(t, entities.ErrorKindValidation, err)

	_, err = NewAutoWatchParty("x", entities.AutoTypeTournament, " ", true, env.deps)
	requireKind(t, entities.ErrorKindValidation, err)
}
