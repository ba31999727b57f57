package services

import (
	"testing"

	"watchparty/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRankingWager(t *testing.T, env *testEnv, party *WatchParty, offersTicket bool) *OrderedRankingWager {
	t.Helper()
	w, err := NewOrderedRankingWager(party, TestAdminID, "Final standings?", TestVotingWindow, []string{"A", "B", "C"}, offersTicket)
	require.NoError(t, err)
	require.NoError(t, party.CreateWager(w))
	return w
}

func TestParseRanking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []string
	}{
		{input: "A > B > C", expected: []string{"A", "B", "C"}},
		{input: "A,B,C", expected: []string{"A", "B", "C"}},
		{input: " T1 ,  Gen.G>DK ", expected: []string{"T1", "Gen.G", "DK"}},
		{input: "A,,B", expected: []string{"A", "B"}},
		{input: "", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRanking(tt.input))
		})
	}
}

func TestOrderedRankingWager_VoteValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		value       string
		errContains string
	}{
		{name: "valid", value: "C > A > B"},
		{name: "case insensitive", value: "c, a, b"},
		{name: "too short", value: "A > B", errContains: "exactly 3 items"},
		{name: "too long", value: "A > B > C > D", errContains: "exactly 3 items"},
		{name: "unknown item", value: "A > B > D", errContains: "each item exactly once"},
		{name: "repeated item", value: "A > A > B", errContains: "each item exactly once"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := env.manualParty(t, "finals", true)
			env.fund(party, TestUser1ID)
			w := newRankingWager(t, env, party, false)

			err := w.Vote(TestUser1ID, tt.value, 10)

			if tt.errContains != "" {
				requireKind(t, entities.ErrorKindValidation, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestOrderedRankingWager_PerfectRankingsSplitEqually(t *testing.T) {
	t.Parallel()
	env := newTestEnv(0.5)
	party := env.manualParty(t, "finals", true)
	env.fund(party, TestUser1ID, TestUser2ID, TestUser3ID)
	w := newRankingWager(t, env, party, true)

	require.NoError(t, w.Vote(TestUser1ID, "A > B > C", 50))
	require.NoError(t, w.Vote(TestUser2ID, "A > B > C", 50))
	require.NoError(t, w.Vote(TestUser3ID, "B > A > C", 50))
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("A > B > C")
	require.NoError(t, err)

	assert.Equal(t, entities.SettlementMethodEqualSplit, result.Method)
	assert.Equal(t, int64(75), result.PayoutFor(TestUser1ID))
	assert.Equal(t, int64(75), result.PayoutFor(TestUser2ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser3ID))
	assert.LessOrEqual(t, result.PayoutFor(TestUser3ID), result.PayoutFor(TestUser1ID))

	assert.True(t, party.HasTicket(TestUser1ID, entities.TicketTypeOrderedRanking))
	assert.True(t, party.HasTicket(TestUser2ID, entities.TicketTypeOrderedRanking))
	assert.False(t, party.HasTicket(TestUser1ID, entities.TicketTypeInOrOut))
	assert.False(t, party.HasTicket(TestUser3ID, entities.TicketTypeOrderedRanking))
}

func TestOrderedRankingWager_KendallSettlement(t *testing.T) {
	t.Parallel()
	env := newTestEnv(0.01)
	party := env.manualParty(t, "finals", true)
	env.fund(party, TestUser1ID, TestUser2ID, TestUser3ID, TestUser4ID)
	w := newRankingWager(t, env, party, true)

	require.NoError(t, w.Vote(TestUser1ID, "B > A > C", 50)) // distance 1
	require.NoError(t, w.Vote(TestUser2ID, "C > B > A", 50)) // distance 3
	require.NoError(t, w.Vote(TestUser3ID, "A > C > B", 50)) // distance 1
	require.NoError(t, w.Vote(TestUser4ID, "C > A > B", 50)) // distance 2
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("A, B, C")
	require.NoError(t, err)

	assert.Equal(t, entities.SettlementMethodKendallTau, result.Method)
	assert.Equal(t, "A > B > C", result.Correct)
	require.Len(t, result.Payouts, 2)
	assert.Equal(t, int64(100), result.PayoutFor(TestUser1ID))
	assert.Equal(t, int64(100), result.PayoutFor(TestUser3ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser2ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser4ID))
	assert.Equal(t, float64(1), result.Payouts[0].Distance)

	assert.ElementsMatch(t,
		[]entities.TicketType{entities.TicketTypeOrderedRanking, entities.TicketTypeInOrOut},
		party.Tickets(TestUser1ID))
	assert.Empty(t, party.Tickets(TestUser4ID))
}

func TestOrderedRankingWager_CloserRankingEarnsMore(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	users := []int64{1, 2, 3, 4, 5, 6, 7}
	env.fund(party, users...)
	w, err := NewOrderedRankingWager(party, TestAdminID, "Standings?", TestVotingWindow, []string{"A", "B", "C", "D"}, false)
	require.NoError(t, err)
	require.NoError(t, party.CreateWager(w))

	votes := []string{
		"B > A > C > D", // 1
		"B > A > D > C", // 2
		"D > C > B > A", // 6
		"D > C > A > B", // 5
		"C > D > B > A", // 5
		"D > B > C > A", // 5
		"C > D > A > B", // 4
	}
	for i, v := range votes {
		require.NoError(t, w.Vote(users[i], v, 100))
	}
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("A > B > C > D")
	require.NoError(t, err)

	// ceil(7 * 0.3) = 3 winners: distances 1, 2, 4
	require.Len(t, result.Payouts, 3)
	assert.Equal(t, []int64{1, 2, 7}, []int64{result.Payouts[0].DiscordID, result.Payouts[1].DiscordID, result.Payouts[2].DiscordID})
	assert.Greater(t, result.Payouts[0].Amount, result.Payouts[1].Amount)
	assert.Greater(t, result.Payouts[1].Amount, result.Payouts[2].Amount)
	assert.LessOrEqual(t, result.TotalPaid(), result.TotalPot)
}

func TestOrderedRankingWager_ResolveRejectsInvalidRanking(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	w := newRankingWager(t, env, party, false)
	require.NoError(t, w.EndVoting())

	_, err := w.Resolve("A > B")
	requireKind(t, entities.ErrorKindValidation, err)
	assert.Equal(t, entities.WagerStatePending, w.State())
}

func TestNewOrderedRankingWager_ValidatesItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		items       []string
		errContains string
	}{
		{name: "valid", items: []string{"Team Liquid", "G2", "Fnatic"}},
		{name: "too few", items: []string{"G2"}, errContains: "at least 2 items"},
		{name: "blank item", items: []string{"G2", "  "}, errContains: "cannot be empty"},
		{name: "duplicate item", items: []string{"G2", "g2"}, errContains: "duplicate item"},
		{name: "comma in item", items: []string{"Team Liquid, Inc", "G2"}, errContains: "cannot contain"},
		{name: "arrow in item", items: []string{"G2", "T1 > DK"}, errContains: "cannot contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := env.manualParty(t, "finals", true)

			w, err := NewOrderedRankingWager(party, TestAdminID, "Standings?", TestVotingWindow, tt.items, false)

			if tt.errContains != "" {
				requireKind(t, entities.ErrorKindValidation, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, w)
				return
			}
			require.NoError(t, err)
			require.NoError(t, party.CreateWager(w))
			env.fund(party, TestUser1ID)
			assert.NoError(t, w.Vote(TestUser1ID, "Fnatic > Team Liquid > G2", 10))
		})
	}
}
