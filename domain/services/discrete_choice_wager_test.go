package services

import (
	"testing"

	"watchparty/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscreteChoiceWager_ValidatesChoices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		choices []string
		wantErr bool
	}{
		{name: "two choices", choices: []string{"T1", "Gen.G"}},
		{name: "four choices", choices: []string{"A", "B", "C", "D"}},
		{name: "one choice", choices: []string{"A"}, wantErr: true},
		{name: "five choices", choices: []string{"A", "B", "C", "D", "E"}, wantErr: true},
		{name: "duplicate ignoring case", choices: []string{"T1", "t1"}, wantErr: true},
		{name: "blank choice", choices: []string{"A", " "}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := env.manualParty(t, "finals", true)

			w, err := NewDiscreteChoiceWager(party, TestAdminID, "Who wins?", TestVotingWindow, tt.choices, false)

			if tt.wantErr {
				requireKind(t, entities.ErrorKindValidation, err)
				assert.Nil(t, w)
				return
			}
			require.NoError(t, err)
			assert.Len(t, w.Choices(), len(tt.choices))
		})
	}
}

func TestDiscreteChoiceWager_Resolve(t *testing.T) {
	t.Parallel()

	type vote struct {
		user   int64
		choice string
		points int64
	}

	tests := []struct {
		name             string
		votes            []vote
		correct          string
		expectedMethod   entities.SettlementMethod
		expectedPayouts  map[int64]int64
		expectedForfeit  bool
		expectedBalances map[int64]int64
	}{
		{
			name: "two winners split a divisible pot",
			votes: []vote{
				{TestUser1ID, "A", 50},
				{TestUser2ID, "A", 50},
			},
			correct:         "A",
			expectedMethod:  entities.SettlementMethodEqualSplit,
			expectedPayouts: map[int64]int64{TestUser1ID: 50, TestUser2ID: 50},
			expectedBalances: map[int64]int64{
				TestUser1ID: TestStartingBalance,
				TestUser2ID: TestStartingBalance,
			},
		},
		{
			name: "winners take losers stakes",
			votes: []vote{
				{TestUser1ID, "A", 100},
				{TestUser2ID, "B", 200},
				{TestUser3ID, "A", 300},
			},
			correct:         "a",
			expectedMethod:  entities.SettlementMethodEqualSplit,
			expectedPayouts: map[int64]int64{TestUser1ID: 300, TestUser3ID: 300},
			expectedBalances: map[int64]int64{
				TestUser1ID: TestStartingBalance + 200,
				TestUser2ID: TestStartingBalance - 200,
				TestUser3ID: TestStartingBalance,
			},
		},
		{
			name: "remainder is truncated",
			votes: []vote{
				{TestUser1ID, "A", 50},
				{TestUser2ID, "A", 50},
				{TestUser3ID, "A", 1},
			},
			correct:         "A",
			expectedMethod:  entities.SettlementMethodEqualSplit,
			expectedPayouts: map[int64]int64{TestUser1ID: 33, TestUser2ID: 33, TestUser3ID: 33},
		},
		{
			name: "no winners forfeits the pot",
			votes: []vote{
				{TestUser1ID, "A", 50},
				{TestUser2ID, "B", 50},
			},
			correct:         "C",
			expectedMethod:  entities.SettlementMethodForfeit,
			expectedPayouts: map[int64]int64{},
			expectedForfeit: true,
			expectedBalances: map[int64]int64{
				TestUser1ID: TestStartingBalance - 50,
				TestUser2ID: TestStartingBalance - 50,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := env.manualParty(t, "finals", false)
			env.fund(party, TestUser1ID, TestUser2ID, TestUser3ID)

			w, err := NewDiscreteChoiceWager(party, TestAdminID, "Who wins?", TestVotingWindow, []string{"A", "B", "C"}, false)
			require.NoError(t, err)
			require.NoError(t, party.CreateWager(w))
			for _, v := range tt.votes {
				require.NoError(t, w.Vote(v.user, v.choice, v.points))
			}
			require.NoError(t, w.EndVoting())

			result, err := w.Resolve(tt.correct)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedMethod, result.Method)
			assert.Equal(t, tt.expectedForfeit, result.Forfeited)
			assert.Len(t, result.Payouts, len(tt.expectedPayouts))
			for user, amount := range tt.expectedPayouts {
				assert.Equal(t, amount, result.PayoutFor(user), "payout for %d", user)
				assert.Equal(t, int64(1), env.ledger.Wins(user, party.Scope()))
			}
			for user, balance := range tt.expectedBalances {
				assert.Equal(t, balance, env.balance(party, user), "balance for %d", user)
			}
		})
	}
}

func TestDiscreteChoiceWager_ResolveRejectsUnknownChoice(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	w := newInstalledDiscrete(t, env, party)
	require.NoError(t, w.EndVoting())

	_, err := w.Resolve("DRX")
	requireKind(t, entities.ErrorKindValidation, err)
	assert.Equal(t, entities.WagerStatePending, w.State(), "a rejected resolution keeps the wager pending")
}

func TestDiscreteChoiceWager_Tickets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		offersTicket    bool
		random          float64
		expectedTickets []entities.TicketType
	}{
		{
			name:            "ticket with bonus",
			offersTicket:    true,
			random:          0.05,
			expectedTickets: []entities.TicketType{entities.TicketTypeDiscreteChoice, entities.TicketTypeInOrOut},
		},
		{
			name:            "ticket without bonus",
			offersTicket:    true,
			random:          0.5,
			expectedTickets: []entities.TicketType{entities.TicketTypeDiscreteChoice},
		},
		{
			name:            "no tickets offered",
			offersTicket:    false,
			random:          0.0,
			expectedTickets: []entities.TicketType{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(tt.random)
			party := env.manualParty(t, "finals", true)
			env.fund(party, TestUser1ID, TestUser2ID)

			w, err := NewDiscreteChoiceWager(party, TestAdminID, "Who wins?", TestVotingWindow, []string{"A", "B"}, tt.offersTicket)
			require.NoError(t, err)
			require.NoError(t, party.CreateWager(w))
			require.NoError(t, w.Vote(TestUser1ID, "A", 10))
			require.NoError(t, w.Vote(TestUser2ID, "B", 10))
			require.NoError(t, w.EndVoting())

			result, err := w.Resolve("A")
			require.NoError(t, err)

			assert.ElementsMatch(t, tt.expectedTickets, party.Tickets(TestUser1ID))
			assert.Empty(t, party.Tickets(TestUser2ID), "losers never get tickets")
			require.Len(t, result.Payouts, 1)
			assert.ElementsMatch(t, tt.expectedTickets, result.Payouts[0].Tickets)
		})
	}
}
